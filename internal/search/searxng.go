// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/deep-researcher/internal/httputil"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Searxng queries a self-hosted SearXNG instance's JSON API. The instance
// base URL comes from configuration; the searxng subcommand can start one
// locally in a container.
type Searxng struct {
	client     *http.Client
	base       string
	userAgent  string
	maxResults int
	maxRetries int
}

// NewSearxng constructs the backend from the search settings.
func NewSearxng(cfg types.SearchConfig) *Searxng {
	return &Searxng{
		client:     newHTTPClient(cfg),
		base:       strings.TrimRight(cfg.SearxngURL, "/"),
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
	}
}

func (s *Searxng) Name() string { return string(types.SearchSearxng) }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search issues the JSON-format query against the instance.
func (s *Searxng) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	endpoint := s.base + "/search?q=" + url.QueryEscape(query) + "&format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Backend: s.Name(), Cause: CauseBadResponse, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(s.Name(), resp.StatusCode)
	}

	var decoded searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Backend: s.Name(), Cause: CauseBadResponse, Err: err}
	}

	results := make([]types.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if len(results) >= s.maxResults {
			break
		}
		results = append(results, types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return results, nil
}
