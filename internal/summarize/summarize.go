// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize condenses web search results into running task summaries.
// Implements: prd003-summarization (R1-R4);
//
//	docs/ARCHITECTURE § Summarization.
package summarize

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/pdiddy/deep-researcher/internal/llm"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Token budgeting for source content fed into the model. The ratio is the
// usual rough English-text heuristic.
const (
	charsPerToken      = 4
	maxTokensPerSource = 1000
)

const noInformationFound = "No information was found for this task."

const fallbackSummary = "No usable summary could be produced from the gathered sources."

// Request carries one round's summarization input. Existing holds the
// running summary from earlier rounds and is empty on round one.
type Request struct {
	Intent   string
	Query    string
	Existing string
	Results  []types.SearchResult
}

// Result is one round's summarization outcome. Complete and FollowUpQuery
// come from the model's trailing coverage marker and feed the round
// continuation decision.
type Result struct {
	Summary        string
	SourcesSummary string
	Complete       bool
	FollowUpQuery  string
}

// SummarizationError wraps a model failure. The orchestrator retries a
// bounded number of times before marking the task failed.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return fmt.Sprintf("summarization: %v", e.Err) }

func (e *SummarizationError) Unwrap() error { return e.Err }

const summarizerSystem = "You are a research assistant. You write dense, factual summaries of web search results and never invent information that is not in the sources."

var summarizePromptTmpl = template.Must(template.New("summarize").Parse(`Research task: {{.Intent}}
Search query used: {{.Query}}

{{if .Existing}}Existing summary to EXTEND with any new information from the sources (do not repeat what it already covers):
{{.Existing}}

{{end}}Sources:
{{.Sources}}

Write {{if .Existing}}the extended summary{{else}}a summary{{end}} of the information relevant to the research task. Use only the sources above. Do not include a title or a source list.

End your reply with exactly one line in one of these two forms:
COVERAGE: complete
COVERAGE: partial | follow-up: <a better search query for what is still missing>
`))

var (
	thinkBlockRe   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	toolArtifactRe = regexp.MustCompile(`\[TOOL_CALL:[^\]]*\]`)

	coverageCompleteRe = regexp.MustCompile(`(?i)^COVERAGE:\s*complete\.?\s*$`)
	coveragePartialRe  = regexp.MustCompile(`(?i)^COVERAGE:\s*partial\s*(?:\|\s*follow-up:\s*(.+?)\s*)?$`)
)

// Summarizer produces task summaries through the language-model capability.
type Summarizer struct {
	llm           llm.Client
	stripThinking bool
}

// New constructs a Summarizer. stripThinking removes <think> blocks that
// local reasoning models emit before the answer.
func New(client llm.Client, stripThinking bool) *Summarizer {
	return &Summarizer{llm: client, stripThinking: stripThinking}
}

// Summarize runs one summarization round. Empty results return a fixed
// no-information summary without a model call, so unproductive searches
// cost nothing.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (Result, error) {
	if len(req.Results) == 0 {
		summary := req.Existing
		if summary == "" {
			summary = noInformationFound
		}
		return Result{Summary: summary}, nil
	}

	var buf bytes.Buffer
	err := summarizePromptTmpl.Execute(&buf, struct {
		Intent, Query, Existing, Sources string
	}{
		Intent:   req.Intent,
		Query:    req.Query,
		Existing: req.Existing,
		Sources:  promptSources(req.Results),
	})
	if err != nil {
		return Result{}, &SummarizationError{Err: fmt.Errorf("rendering prompt: %w", err)}
	}

	reply, err := s.llm.Complete(ctx, summarizerSystem, buf.String())
	if err != nil {
		return Result{}, &SummarizationError{Err: err}
	}

	if s.stripThinking {
		reply = StripThinking(reply)
	}
	reply = toolArtifactRe.ReplaceAllString(reply, "")

	summary, complete, followUp := splitCoverageMarker(reply)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = fallbackSummary
		complete, followUp = true, ""
	}

	return Result{
		Summary:        summary,
		SourcesSummary: SourceBullets(req.Results),
		Complete:       complete,
		FollowUpQuery:  followUp,
	}, nil
}

// splitCoverageMarker peels the trailing coverage line off a reply. A reply
// without a recognizable marker counts as complete: a model that ignores the
// instruction cannot supply a follow-up query either.
func splitCoverageMarker(reply string) (summary string, complete bool, followUp string) {
	lines := strings.Split(strings.TrimRight(reply, "\n \t"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if coverageCompleteRe.MatchString(line) {
			return strings.Join(lines[:i], "\n"), true, ""
		}
		if m := coveragePartialRe.FindStringSubmatch(line); m != nil {
			return strings.Join(lines[:i], "\n"), false, strings.TrimSpace(m[1])
		}
		break
	}
	return reply, true, ""
}

// StripThinking removes well-formed <think>...</think> blocks. Unbalanced
// tags are left alone rather than guessing at the model's intent.
func StripThinking(text string) string {
	return thinkBlockRe.ReplaceAllString(text, "")
}

// SourceBullets renders the condensed source list persisted with a summary.
// Results are deduplicated by URL, first occurrence wins.
func SourceBullets(results []types.SearchResult) string {
	var b strings.Builder
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&b, "* %s : %s\n", title, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// promptSources formats results for the model prompt, deduplicated by URL,
// with raw page content capped by the per-source token budget.
func promptSources(results []types.SearchResult) string {
	charLimit := maxTokensPerSource * charsPerToken
	var b strings.Builder
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if r.URL != "" && seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		fmt.Fprintf(&b, "Source: %s\n===\nURL: %s\n===\nMost relevant content from source: %s\n", r.Title, r.URL, r.Snippet)
		if r.RawContent != "" {
			raw := r.RawContent
			if len(raw) > charLimit {
				raw = raw[:charLimit] + "... [truncated]"
			}
			fmt.Fprintf(&b, "===\nFull source content limited to %d tokens: %s\n", maxTokensPerSource, raw)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
