// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report composes the final research report from completed tasks.
// Implements: prd004-reporting (R1-R3);
//
//	docs/ARCHITECTURE § Reporting.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/deep-researcher/internal/llm"
	"github.com/pdiddy/deep-researcher/internal/summarize"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// ReportingError reports that the model polish failed and the deterministic
// fallback assembly was used. It never invalidates the returned report.
type ReportingError struct {
	Err error
}

func (e *ReportingError) Error() string { return fmt.Sprintf("reporting: %v", e.Err) }

func (e *ReportingError) Unwrap() error { return e.Err }

const reporterSystem = "You are a research report editor. You turn task summaries into a single coherent Markdown report without adding facts that are not in the summaries."

var reportPromptTmpl = template.Must(template.New("report").Parse(`Research topic: {{.Topic}}

Task summaries, in research order:

{{range .Sections}}### {{.Title}}
{{.Summary}}

{{end}}Write the final research report in Markdown:
- Start with a single "# " title line for the topic.
- Add a brief introduction.
- Keep one section per task summary, in the order given, preserving their factual content.
- Finish with a short synthesis of the findings.
- Do not invent information. Do not add a source list; sources are appended separately.
`))

type section struct {
	Title   string
	Summary string
}

// Reporter composes reports through the language-model capability.
type Reporter struct {
	llm           llm.Client
	stripThinking bool
}

// New constructs a Reporter. stripThinking is applied to the polished
// model output the same way the summarizer applies it.
func New(client llm.Client, stripThinking bool) *Reporter {
	return &Reporter{llm: client, stripThinking: stripThinking}
}

// Compose renders the final report for a session. The returned markdown is
// always usable: when the model polish fails the deterministic assembly is
// returned together with a ReportingError for the caller to log. Items must
// be in planning order; only completed ones contribute content, the rest are
// footnoted with their reason.
func (r *Reporter) Compose(ctx context.Context, topic string, items []types.TodoItem) (string, error) {
	var sections []section
	for _, it := range items {
		if it.Status == types.StatusCompleted {
			sections = append(sections, section{Title: it.Title, Summary: it.Summary})
		}
	}

	if len(sections) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "# Research Report: %s\n\nNo research tasks completed successfully.\n", topic)
		appendFootnotes(&b, items)
		return b.String(), nil
	}

	var buf bytes.Buffer
	err := reportPromptTmpl.Execute(&buf, struct {
		Topic    string
		Sections []section
	}{Topic: topic, Sections: sections})
	if err != nil {
		return fallbackReport(topic, items), &ReportingError{Err: fmt.Errorf("rendering prompt: %w", err)}
	}

	reply, err := r.llm.Complete(ctx, reporterSystem, buf.String())
	if err != nil {
		return fallbackReport(topic, items), &ReportingError{Err: err}
	}
	if r.stripThinking {
		reply = summarize.StripThinking(reply)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallbackReport(topic, items), &ReportingError{Err: fmt.Errorf("model returned an empty report")}
	}

	var b strings.Builder
	b.WriteString(reply)
	b.WriteString("\n")
	appendSources(&b, items)
	appendFootnotes(&b, items)
	return b.String(), nil
}

// fallbackReport assembles the report without any model help: title, one
// section per completed item with its summary and sources, then footnotes.
func fallbackReport(topic string, items []types.TodoItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n", topic)
	for _, it := range items {
		if it.Status != types.StatusCompleted {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", it.Title, it.Summary)
		if it.SourcesSummary != "" {
			fmt.Fprintf(&b, "\nSources:\n%s\n", it.SourcesSummary)
		}
	}
	appendFootnotes(&b, items)
	return b.String()
}

// appendSources merges the per-item source bullets, deduplicated across
// tasks, line order preserved.
func appendSources(b *strings.Builder, items []types.TodoItem) {
	seen := make(map[string]bool)
	var lines []string
	for _, it := range items {
		if it.Status != types.StatusCompleted || it.SourcesSummary == "" {
			continue
		}
		for _, line := range strings.Split(it.SourcesSummary, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Sources\n\n%s\n", strings.Join(lines, "\n"))
}

// appendFootnotes lists tasks that produced no section, with their reasons.
func appendFootnotes(b *strings.Builder, items []types.TodoItem) {
	var notes []string
	for _, it := range items {
		if it.Status == types.StatusCompleted {
			continue
		}
		reason := it.StatusReason
		if reason == "" {
			reason = string(it.Status)
		}
		notes = append(notes, fmt.Sprintf("- %s: not covered (%s)", it.Title, reason))
	}
	if len(notes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Not covered\n\n%s\n", strings.Join(notes, "\n"))
}
