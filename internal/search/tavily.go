// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pdiddy/deep-researcher/internal/httputil"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// tavilyEndpoint is the Tavily search API. Package-level var for test
// substitution.
var tavilyEndpoint = "https://api.tavily.com/search"

// Tavily queries the Tavily research API. Raw page content is requested
// from the API itself, so the full-page fetcher skips these results.
type Tavily struct {
	client     *http.Client
	apiKey     string
	userAgent  string
	maxResults int
	maxRetries int
	rawContent bool
}

// NewTavily constructs the backend from the search settings.
func NewTavily(cfg types.SearchConfig) *Tavily {
	return &Tavily{
		client:     newHTTPClient(cfg),
		apiKey:     cfg.TavilyAPIKey,
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
		rawContent: cfg.FetchFullPage,
	}
}

func (t *Tavily) Name() string { return string(types.SearchTavily) }

type tavilyRequest struct {
	Query             string `json:"query"`
	APIKey            string `json:"api_key"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Content    string `json:"content"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

// Search posts the query and decodes the ranked results.
func (t *Tavily) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	payload, err := json.Marshal(tavilyRequest{
		Query:             query,
		APIKey:            t.apiKey,
		SearchDepth:       "basic",
		MaxResults:        t.maxResults,
		IncludeRawContent: t.rawContent,
	})
	if err != nil {
		return nil, &Error{Backend: t.Name(), Cause: CauseBadResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Backend: t.Name(), Cause: CauseBadResponse, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := httputil.DoWithRetry(ctx, t.client, req, t.maxRetries)
	if err != nil {
		return nil, transportError(t.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(t.Name(), resp.StatusCode)
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Backend: t.Name(), Cause: CauseBadResponse, Err: err}
	}

	results := make([]types.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if len(results) >= t.maxResults {
			break
		}
		results = append(results, types.SearchResult{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Content,
			RawContent: r.RawContent,
		})
	}
	return results, nil
}
