// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// maxFetchBytes caps the stripped page text attached to a result so the
// summarizer's context stays bounded.
const maxFetchBytes = 32 * 1024

const truncationMarker = "... [truncated]"

// fullPage decorates a Provider: after a successful search it fetches each
// result URL, strips the HTML, and attaches the text as RawContent.
// Per-page failures leave that result's RawContent empty; they never fail
// the search.
type fullPage struct {
	inner     Provider
	client    *http.Client
	userAgent string
}

// WithFullPage wraps p with the page fetcher.
func WithFullPage(p Provider, cfg types.SearchConfig) Provider {
	return &fullPage{
		inner:     p,
		client:    newHTTPClient(cfg),
		userAgent: cfg.UserAgent,
	}
}

func (f *fullPage) Name() string { return f.inner.Name() }

func (f *fullPage) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	results, err := f.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if ctx.Err() != nil {
			break
		}
		if results[i].RawContent != "" || results[i].URL == "" {
			continue
		}
		text, err := f.fetch(ctx, results[i].URL)
		if err != nil {
			continue
		}
		results[i].RawContent = text
	}
	return results, nil
}

// fetch downloads one page and reduces it to plain text.
func (f *fullPage) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(f.inner.Name(), resp.StatusCode)
	}

	// Read one byte past the cap so truncation is detectable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes*4))
	if err != nil {
		return "", err
	}

	text := StripHTML(string(body))
	if len(text) > maxFetchBytes {
		text = text[:maxFetchBytes] + truncationMarker
	}
	return text, nil
}

var (
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader     = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes scripts, styles, and page chrome, then all tags, and
// normalizes entities and whitespace.
func StripHTML(page string) string {
	s := reScript.ReplaceAllString(page, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)

	s = reWhitespace.ReplaceAllString(s, " ")
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	s = strings.Join(out, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
