// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"

	"github.com/spf13/viper"

	"github.com/pdiddy/deep-researcher/internal/archive"
	"github.com/pdiddy/deep-researcher/internal/llm"
	"github.com/pdiddy/deep-researcher/internal/notes"
	"github.com/pdiddy/deep-researcher/internal/orchestrator"
	"github.com/pdiddy/deep-researcher/internal/planner"
	"github.com/pdiddy/deep-researcher/internal/report"
	"github.com/pdiddy/deep-researcher/internal/search"
	"github.com/pdiddy/deep-researcher/internal/summarize"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// loadConfig assembles the engine configuration from the config file,
// environment, and loaded secrets.
func loadConfig() (types.Config, error) {
	var cfg types.Config

	cfg.LLM.Provider = types.LLMProvider(viper.GetString("llm_provider"))
	cfg.LLM.BaseURL = viper.GetString("llm_base_url")
	cfg.LLM.APIKey = secretDefault("LLM_API_KEY", viper.GetString("llm_api_key"))
	cfg.LLM.LocalLLM = viper.GetString("local_llm")
	cfg.LLM.ModelID = viper.GetString("llm_model_id")
	cfg.LLM.Timeout = viper.GetDuration("llm_timeout")
	cfg.LLM.MaxRetries = viper.GetInt("llm_max_retries")
	cfg.LLM.StripThinkingTokens = viper.GetBool("strip_thinking_tokens")

	cfg.Search.API = types.SearchAPI(viper.GetString("search_api"))
	cfg.Search.Timeout = viper.GetDuration("search_timeout")
	cfg.Search.MaxResults = viper.GetInt("search_max_results")
	cfg.Search.FetchFullPage = viper.GetBool("fetch_full_page")
	cfg.Search.TavilyAPIKey = secretDefault("TAVILY_API_KEY", viper.GetString("tavily_api_key"))
	cfg.Search.PerplexityAPIKey = secretDefault("PERPLEXITY_API_KEY", viper.GetString("perplexity_api_key"))
	cfg.Search.SearxngURL = viper.GetString("searxng_url")

	cfg.Orchestrator.MaxWebResearchLoops = viper.GetInt("max_web_research_loops")
	cfg.Orchestrator.EventBuffer = viper.GetInt("event_buffer")

	cfg.Notes.Enabled = viper.GetBool("enable_notes")
	cfg.Notes.Workspace = viper.GetString("notes_workspace")

	cfg.Archive.Enabled = viper.GetBool("archive_enabled")
	cfg.Archive.Dir = viper.GetString("archive_dir")
	cfg.Archive.MaxResults = viper.GetInt("archive_max_results")

	cfg.Server.Addr = viper.GetString("addr")

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// engineDeps holds the long-lived stores shared across runs: open once per
// process, not per request.
type engineDeps struct {
	notes   *notes.Store
	archive *archive.Store
}

func openDeps(cfg types.Config) (*engineDeps, error) {
	deps := &engineDeps{}
	if cfg.Notes.Enabled {
		store, err := notes.Open(cfg.Notes.Workspace)
		if err != nil {
			return nil, err
		}
		deps.notes = store
	}
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return nil, err
		}
		deps.archive = store
	}
	return deps, nil
}

func (d *engineDeps) Close() error {
	if d.archive != nil {
		return d.archive.Close()
	}
	return nil
}

// buildEngine wires the orchestrator and its collaborators. api overrides
// the configured search backend when non-empty.
func buildEngine(cfg types.Config, deps *engineDeps, api types.SearchAPI, log io.Writer) (*orchestrator.Orchestrator, error) {
	if api != "" {
		cfg.Search.API = api
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	provider, err := search.New(cfg.Search)
	if err != nil {
		return nil, err
	}

	opts := orchestrator.Options{
		Planner:    planner.New(client),
		Search:     provider,
		Summarizer: summarize.New(client, cfg.LLM.StripThinkingTokens),
		Reporter:   report.New(client, cfg.LLM.StripThinkingTokens),
		MaxLoops:   cfg.Orchestrator.MaxWebResearchLoops,
		Log:        log,
	}
	if deps.notes != nil {
		opts.Notes = deps.notes
	}
	if deps.archive != nil {
		opts.Archive = deps.archive
	}
	return orchestrator.New(opts)
}
