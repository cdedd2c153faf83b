// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

const sampleLitePage = `<html><body><table>
<tr><td>1.</td><td><a rel="nofollow" href="https://example.org/tea" class='result-link'>History of <b>Tea</b></a></td></tr>
<tr><td></td><td class='result-snippet'>Tea originated in &amp; around southwest China.</td></tr>
<tr><td>2.</td><td><a rel="nofollow" href="https://example.org/ceylon" class='result-link'>Ceylon tea</a></td></tr>
<tr><td></td><td class='result-snippet'>Grown in Sri Lanka since 1867.</td></tr>
</table></body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotQuery = r.PostForm.Get("q")
		w.Write([]byte(sampleLitePage))
	}))
	defer ts.Close()

	old := ddgEndpoint
	ddgEndpoint = ts.URL
	defer func() { ddgEndpoint = old }()

	d := NewDuckDuckGo(testCfg())
	results, err := d.Search(context.Background(), "history of tea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "history of tea" {
		t.Errorf("got query %q, want %q", gotQuery, "history of tea")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "History of Tea" {
		t.Errorf("title tags should be stripped, got %q", results[0].Title)
	}
	if results[0].URL != "https://example.org/tea" {
		t.Errorf("got url %q", results[0].URL)
	}
	if results[0].Snippet != "Tea originated in & around southwest China." {
		t.Errorf("entities should be decoded, got %q", results[0].Snippet)
	}
	if results[1].Title != "Ceylon tea" {
		t.Errorf("got second title %q", results[1].Title)
	}
}

func TestDuckDuckGoEmptyPageIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><table></table></body></html>`))
	}))
	defer ts.Close()

	old := ddgEndpoint
	ddgEndpoint = ts.URL
	defer func() { ddgEndpoint = old }()

	d := NewDuckDuckGo(testCfg())
	results, err := d.Search(context.Background(), "xyzzy")
	if err != nil {
		t.Fatalf("empty results must not be an error, got: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestDuckDuckGoMaxResultsCap(t *testing.T) {
	page := ""
	for i := 0; i < 10; i++ {
		page += `<a rel="nofollow" href="https://example.org/p" class='result-link'>Result</a>`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer ts.Close()

	old := ddgEndpoint
	ddgEndpoint = ts.URL
	defer func() { ddgEndpoint = old }()

	cfg := testCfg()
	cfg.MaxResults = 3
	d := NewDuckDuckGo(cfg)
	results, err := d.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want cap of 3", len(results))
	}
}

func TestDuckDuckGoServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := ddgEndpoint
	ddgEndpoint = ts.URL
	defer func() { ddgEndpoint = old }()

	d := NewDuckDuckGo(testCfg())
	_, err := d.Search(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error for 503")
	}
	se, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if se.Cause != CauseBadResponse {
		t.Errorf("got cause %q, want %q", se.Cause, CauseBadResponse)
	}
}

func TestRateGateWaits(t *testing.T) {
	g := &rateGate{interval: 30 * time.Millisecond}

	start := time.Now()
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second request should wait the interval, elapsed %v", elapsed)
	}
}

func TestRateGateHonorsContext(t *testing.T) {
	g := &rateGate{interval: 10 * time.Second}
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}
