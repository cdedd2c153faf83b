// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-researcher/0.1"). Per prd002-web-search R5.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LLMProvider identifies the language-model endpoint family.
// Per prd003-summarization R5.1.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig holds settings shared by every component that calls the
// language model (planner, summarizer, reporter).
type LLMConfig struct {
	// Provider selects the endpoint family: ollama or openai.
	Provider LLMProvider `json:"llm_provider" yaml:"llm_provider"`

	// BaseURL is the API base. For ollama it is sanitized to end in /v1
	// (default http://localhost:11434/v1). Empty with provider openai uses
	// the platform default.
	BaseURL string `json:"llm_base_url,omitempty" yaml:"llm_base_url,omitempty"`

	// APIKey authenticates hosted providers. Ollama ignores it.
	APIKey string `json:"llm_api_key,omitempty" yaml:"llm_api_key,omitempty"`

	// LocalLLM is the model served by ollama (default "llama3.2").
	LocalLLM string `json:"local_llm" yaml:"local_llm"`

	// ModelID is the hosted model identifier, used when Provider is not ollama.
	ModelID string `json:"llm_model_id,omitempty" yaml:"llm_model_id,omitempty"`

	// Timeout bounds each model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the retry bound for failed model calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// StripThinkingTokens removes <think> blocks from model output.
	StripThinkingTokens bool `json:"strip_thinking_tokens" yaml:"strip_thinking_tokens"`
}

// Model returns the effective model identifier for the provider.
func (c LLMConfig) Model() string {
	if c.Provider == ProviderOllama {
		if c.LocalLLM != "" {
			return c.LocalLLM
		}
		return "llama3.2"
	}
	if c.ModelID != "" {
		return c.ModelID
	}
	return c.LocalLLM
}

// SearchConfig holds settings for the web search capability.
// Per prd002-web-search R1.1, R5.1-R5.4.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// API selects the backend: duckduckgo, tavily, perplexity, or searxng.
	API SearchAPI `json:"search_api" yaml:"search_api"`

	// MaxResults is the maximum number of results per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MaxRetries bounds in-orchestrator retries of a failed search (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// FetchFullPage fetches and strips each result page after a search.
	FetchFullPage bool `json:"fetch_full_page" yaml:"fetch_full_page"`

	// TavilyAPIKey authenticates the tavily backend.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// PerplexityAPIKey authenticates the perplexity backend.
	PerplexityAPIKey string `json:"perplexity_api_key,omitempty" yaml:"perplexity_api_key,omitempty"`

	// SearxngURL is the base URL of a SearXNG instance
	// (default http://localhost:8888).
	SearxngURL string `json:"searxng_url,omitempty" yaml:"searxng_url,omitempty"`
}

// OrchestratorConfig holds settings for the research loop.
// Per prd006-orchestration R3.1-R3.3.
type OrchestratorConfig struct {
	// MaxWebResearchLoops is the round bound per task (positive, default 3).
	MaxWebResearchLoops int `json:"max_web_research_loops" yaml:"max_web_research_loops"`

	// EventBuffer is the per-session outbound event queue size (default 64).
	// A listener that falls this far behind is disconnected rather than
	// blocking the run.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`
}

// NotesConfig holds settings for the durable note store.
// Per prd005-notes R1.1-R1.3.
type NotesConfig struct {
	// Enabled controls whether completed tasks are persisted as notes.
	Enabled bool `json:"enable_notes" yaml:"enable_notes"`

	// Workspace is the directory holding note content and the index file
	// (default "./notes").
	Workspace string `json:"notes_workspace" yaml:"notes_workspace"`
}

// ArchiveConfig holds settings for the SQLite research archive.
// Per prd008-archive R1.1.
type ArchiveConfig struct {
	// Enabled controls whether finished runs are archived.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the base directory for the archive database (default "archive").
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of history query results
	// (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr"`
}

// Config groups every component configuration for the engine.
type Config struct {
	LLM          LLMConfig          `json:"llm" yaml:"llm"`
	Search       SearchConfig       `json:"search" yaml:"search"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Notes        NotesConfig        `json:"notes" yaml:"notes"`
	Archive      ArchiveConfig      `json:"archive" yaml:"archive"`
	Server       ServerConfig       `json:"server" yaml:"server"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOllama
	}
	if c.LLM.LocalLLM == "" {
		c.LLM.LocalLLM = "llama3.2"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Search.API == "" {
		c.Search.API = SearchTavily
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 30 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "deep-researcher/0.1"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.MaxRetries <= 0 {
		c.Search.MaxRetries = 2
	}
	if c.Search.SearxngURL == "" {
		c.Search.SearxngURL = "http://localhost:8888"
	}
	if c.Orchestrator.MaxWebResearchLoops <= 0 {
		c.Orchestrator.MaxWebResearchLoops = 3
	}
	if c.Orchestrator.EventBuffer <= 0 {
		c.Orchestrator.EventBuffer = 64
	}
	if c.Notes.Workspace == "" {
		c.Notes.Workspace = "./notes"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "archive"
	}
	if c.Archive.MaxResults <= 0 {
		c.Archive.MaxResults = 20
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxWebResearchLoops < 1 {
		return fmt.Errorf("max_web_research_loops must be >= 1, got %d", c.Orchestrator.MaxWebResearchLoops)
	}
	if !ValidSearchAPI(c.Search.API) {
		return fmt.Errorf("unknown search_api %q", c.Search.API)
	}
	return nil
}
