// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/deep-researcher/internal/httputil"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// ddgEndpoint is the DuckDuckGo lite endpoint. Package-level var for test
// substitution.
var ddgEndpoint = "https://lite.duckduckgo.com/lite/"

// ddgGate serializes requests process-wide. The lite endpoint tolerates
// roughly one request per second per client before answering 429.
var ddgGate = &rateGate{interval: time.Second}

type rateGate struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// wait blocks until the gate's interval has elapsed since the previous
// request. The lock is held through the sleep so concurrent sessions queue
// behind each other rather than bursting.
func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if d := g.interval - time.Since(g.last); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	g.last = time.Now()
	return nil
}

var (
	// The lite page marks organic results with result-link anchors and
	// result-snippet cells.
	ddgLinkRe    = regexp.MustCompile(`(?is)<a[^>]*href="([^"]+)"[^>]*class=['"]result-link['"][^>]*>(.*?)</a>`)
	ddgAltLinkRe = regexp.MustCompile(`(?is)<a[^>]*class=['"]result-link['"][^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`(?is)<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo queries the lite HTML endpoint. It needs no API key, which
// makes it the zero-configuration default for local use.
type DuckDuckGo struct {
	client     *http.Client
	userAgent  string
	maxResults int
	maxRetries int
}

// NewDuckDuckGo constructs the backend from the search settings.
func NewDuckDuckGo(cfg types.SearchConfig) *DuckDuckGo {
	return &DuckDuckGo{
		client:     newHTTPClient(cfg),
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
	}
}

func (d *DuckDuckGo) Name() string { return string(types.SearchDuckDuckGo) }

// Search posts the query form and scrapes the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if err := ddgGate.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Backend: d.Name(), Cause: CauseBadResponse, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := httputil.DoWithRetry(ctx, d.client, req, d.maxRetries)
	if err != nil {
		return nil, transportError(d.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(d.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(d.Name(), err)
	}

	return d.parse(string(body)), nil
}

// parse extracts title/url pairs and lines them up with snippet cells.
// The lite page interleaves one snippet row per result row; when the
// markup drifts the snippet is simply left empty rather than failing.
func (d *DuckDuckGo) parse(page string) []types.SearchResult {
	links := ddgLinkRe.FindAllStringSubmatch(page, -1)
	if len(links) == 0 {
		links = ddgAltLinkRe.FindAllStringSubmatch(page, -1)
	}
	snippets := ddgSnippetRe.FindAllStringSubmatch(page, -1)

	var results []types.SearchResult
	for i, m := range links {
		if len(results) >= d.maxResults {
			break
		}
		u := html.UnescapeString(strings.TrimSpace(m[1]))
		title := cleanHTML(m[2])
		if u == "" || title == "" {
			continue
		}
		r := types.SearchResult{Title: title, URL: u}
		if i < len(snippets) {
			r.Snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, r)
	}
	return results
}

// cleanHTML strips tags, decodes entities, and collapses whitespace.
func cleanHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
