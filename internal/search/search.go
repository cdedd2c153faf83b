// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search implements the pluggable web search capability.
// Implements: prd002-web-search (R1-R5);
//
//	docs/ARCHITECTURE § Capabilities § Web Search.
//
// Each backend is one concrete Provider selected by a factory at session
// start. An empty result set is a normal outcome, never an error; provider
// failures surface as *Error carrying a cause code so the orchestrator can
// report a configuration problem differently from an empty query.
package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Provider executes a query against one search backend.
type Provider interface {
	// Name returns the backend selector name (e.g. "tavily").
	Name() string

	// Search returns ranked result snippets, possibly empty.
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Cause classifies a provider failure. Per prd002-web-search R3.2.
type Cause string

const (
	CauseTimeout     Cause = "timeout"
	CauseAuth        Cause = "auth"
	CauseRateLimit   Cause = "rate_limit"
	CauseNetwork     Cause = "network"
	CauseBadResponse Cause = "bad_response"
)

// Error is a search provider failure.
type Error struct {
	Backend string
	Cause   Cause
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s search: %s: %v", e.Backend, e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New selects and constructs the backend for cfg.API, wrapping it with the
// full-page fetcher when enabled. Unknown or misconfigured backends fail
// here, at session start, not at call time.
func New(cfg types.SearchConfig) (Provider, error) {
	var p Provider

	switch cfg.API {
	case types.SearchDuckDuckGo:
		p = NewDuckDuckGo(cfg)
	case types.SearchTavily:
		if cfg.TavilyAPIKey == "" {
			return nil, fmt.Errorf("tavily backend requires tavily_api_key")
		}
		p = NewTavily(cfg)
	case types.SearchPerplexity:
		if cfg.PerplexityAPIKey == "" {
			return nil, fmt.Errorf("perplexity backend requires perplexity_api_key")
		}
		p = NewPerplexity(cfg)
	case types.SearchSearxng:
		p = NewSearxng(cfg)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.API)
	}

	if cfg.FetchFullPage {
		p = WithFullPage(p, cfg)
	}
	return p, nil
}

// newHTTPClient builds the per-backend client from the shared HTTP settings.
func newHTTPClient(cfg types.SearchConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// transportError wraps a transport-level failure with the right cause:
// deadline expiry and net timeouts are CauseTimeout, everything else
// CauseNetwork.
func transportError(backend string, err error) *Error {
	cause := CauseNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		cause = CauseTimeout
	}
	return &Error{Backend: backend, Cause: cause, Err: err}
}

// statusError maps a non-200 HTTP status to a caused failure.
func statusError(backend string, code int) *Error {
	cause := CauseBadResponse
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = CauseAuth
	case http.StatusTooManyRequests:
		cause = CauseRateLimit
	}
	return &Error{Backend: backend, Cause: cause, Err: fmt.Errorf("http %d", code)}
}
