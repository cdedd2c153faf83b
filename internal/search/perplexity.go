// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/deep-researcher/internal/httputil"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// perplexityEndpoint is the Perplexity chat completions API. Package-level
// var for test substitution.
var perplexityEndpoint = "https://api.perplexity.ai/chat/completions"

// Perplexity answers the query through the sonar model's web search. The
// answer text becomes the first result's snippet; the returned citations
// become additional results so every source stays addressable.
type Perplexity struct {
	client     *http.Client
	apiKey     string
	userAgent  string
	maxResults int
	maxRetries int
}

// NewPerplexity constructs the backend from the search settings.
func NewPerplexity(cfg types.SearchConfig) *Perplexity {
	return &Perplexity{
		client:     newHTTPClient(cfg),
		apiKey:     cfg.PerplexityAPIKey,
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
	}
}

func (p *Perplexity) Name() string { return string(types.SearchPerplexity) }

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Search sends the query as a sonar conversation and maps the answer plus
// citations to results.
func (p *Perplexity) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	payload, err := json.Marshal(perplexityRequest{
		Model: "sonar",
		Messages: []perplexityMessage{
			{Role: "system", Content: "Search the web and provide factual information with sources."},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return nil, &Error{Backend: p.Name(), Cause: CauseBadResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, perplexityEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Backend: p.Name(), Cause: CauseBadResponse, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := httputil.DoWithRetry(ctx, p.client, req, p.maxRetries)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp.StatusCode)
	}

	var decoded perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Backend: p.Name(), Cause: CauseBadResponse, Err: err}
	}
	if len(decoded.Choices) == 0 {
		return nil, nil
	}

	answer := decoded.Choices[0].Message.Content
	if answer == "" {
		return nil, nil
	}

	citations := decoded.Citations
	first := types.SearchResult{
		Title:      "Perplexity Search, Source 1",
		URL:        "https://perplexity.ai",
		Snippet:    answer,
		RawContent: answer,
	}
	if len(citations) > 0 {
		first.URL = citations[0]
	}
	results := []types.SearchResult{first}

	for i, cite := range citations {
		if i == 0 || len(results) >= p.maxResults {
			continue
		}
		results = append(results, types.SearchResult{
			Title:   fmt.Sprintf("Perplexity Search, Source %d", i+1),
			URL:     cite,
			Snippet: "See source 1 for the full response.",
		})
	}
	return results, nil
}
