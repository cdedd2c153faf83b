// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the language-model capability used by the planner,
// summarizer, and reporter.
// Implements: prd003-summarization R5.1-R5.4 (provider selection, retry);
//
//	docs/ARCHITECTURE § Capabilities.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Client is the completion capability. One variant implementation exists
// per provider family; the factory selects it at session start.
type Client interface {
	// Complete sends one system+user exchange and returns the assistant text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// backoffBase controls the delay between completion retries. Tests override
// this to avoid real sleeps.
var backoffBase = time.Second

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// OpenAIClient speaks any OpenAI-compatible chat completions endpoint:
// hosted OpenAI, ollama's /v1 surface, llama.cpp, and the like.
type OpenAIClient struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

// New builds the client for the configured provider. Unknown providers are
// rejected here, at session start, not at call time.
func New(cfg types.LLMConfig) (*OpenAIClient, error) {
	var oc openai.ClientConfig

	switch cfg.Provider {
	case types.ProviderOllama:
		// Ollama ignores the key but the SDK sends the header regardless.
		key := cfg.APIKey
		if key == "" {
			key = "ollama"
		}
		oc = openai.DefaultConfig(key)
		oc.BaseURL = SanitizeOllamaBaseURL(cfg.BaseURL)
	case types.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider openai requires an API key")
		}
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &OpenAIClient{
		api:        openai.NewClientWithConfig(oc),
		model:      cfg.Model(),
		timeout:    timeout,
		maxRetries: maxRetries,
	}, nil
}

// Complete calls the chat completions endpoint with bounded retry. Each
// attempt runs under its own timeout; an expired attempt counts as a
// transient failure and is retried until the bound, unless the parent
// context itself is done.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("model %s returned no choices", c.model)
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err

		// The parent being done means the session is shutting down, not
		// that the call was flaky.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := backoffBase * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", c.maxRetries, lastErr)
}

// SanitizeOllamaBaseURL normalizes an ollama endpoint so the SDK's
// OpenAI-compatible paths resolve: trailing slashes are stripped and a /v1
// suffix is appended when missing. An empty input yields the local default.
func SanitizeOllamaBaseURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return defaultOllamaBaseURL
	}
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}
