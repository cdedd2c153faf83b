// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner decomposes a research topic into an ordered task list.
// Implements: prd001-planning (R1-R3);
//
//	docs/ARCHITECTURE § Planning.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/pdiddy/deep-researcher/internal/llm"
)

// TaskSeed is one planned task before it becomes a tracked TodoItem.
// The orchestrator assigns IDs in planning order.
type TaskSeed struct {
	Title  string `json:"title"`
	Intent string `json:"intent"`
	Query  string `json:"query"`
}

// PlanningError is fatal to a session: with no tasks there is nothing to
// run. Per prd001-planning R3.1 an empty or malformed plan is an error,
// never an empty successful session.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string { return fmt.Sprintf("planning: %v", e.Err) }

func (e *PlanningError) Unwrap() error { return e.Err }

const plannerSystem = "You are a research planning assistant. You decompose topics into focused, independently searchable research tasks."

// planPromptTmpl instructs the model to return a strict JSON task list.
var planPromptTmpl = template.Must(template.New("plan").Parse(`Decompose the following research topic into 3 to 5 ordered research tasks.

For each task provide:
- title: a short task name
- intent: one sentence describing what the task should find out
- query: the initial web search query for the task

Respond with a JSON object containing a "tasks" array and no text outside the JSON object.

Example response:
{"tasks": [{"title": "Origins", "intent": "Establish where and when the subject first appeared.", "query": "origins of the subject"}]}

Topic:
{{.Topic}}
`))

// toolCallRe matches the [TOOL_CALL: create_research_plan({...})] form some
// models produce when tool-call formatting leaks into plain completions.
var toolCallRe = regexp.MustCompile(`(?s)\[TOOL_CALL:\s*create_research_plan\((.*?)\)\]`)

// Planner plans through the language-model capability.
type Planner struct {
	llm llm.Client
}

// New constructs a Planner on the given model client.
func New(client llm.Client) *Planner {
	return &Planner{llm: client}
}

// Plan produces the ordered task seeds for a topic. It has no side effects
// beyond the model call. Schema validation happens here: a seed without a
// usable title is dropped, and zero surviving seeds is a PlanningError.
func (p *Planner) Plan(ctx context.Context, topic string) ([]TaskSeed, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &PlanningError{Err: fmt.Errorf("empty topic")}
	}

	var buf bytes.Buffer
	if err := planPromptTmpl.Execute(&buf, struct{ Topic string }{Topic: topic}); err != nil {
		return nil, &PlanningError{Err: fmt.Errorf("rendering prompt: %w", err)}
	}

	reply, err := p.llm.Complete(ctx, plannerSystem, buf.String())
	if err != nil {
		return nil, &PlanningError{Err: err}
	}

	seeds, err := parseSeeds(reply)
	if err != nil {
		return nil, &PlanningError{Err: err}
	}

	valid := make([]TaskSeed, 0, len(seeds))
	for _, s := range seeds {
		s.Title = strings.TrimSpace(s.Title)
		s.Intent = strings.TrimSpace(s.Intent)
		s.Query = strings.TrimSpace(s.Query)
		if s.Title == "" {
			continue
		}
		if s.Query == "" {
			s.Query = s.Title
		}
		if s.Intent == "" {
			s.Intent = s.Title
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, &PlanningError{Err: fmt.Errorf("model returned no usable tasks")}
	}
	return valid, nil
}

// parseSeeds extracts a task list from model output. It accepts, in order:
// a JSON object with a "tasks" array, a bare JSON array, and the tool-call
// fallback form.
func parseSeeds(reply string) ([]TaskSeed, error) {
	if block := jsonBlock(reply, '{', '}'); block != "" {
		var wrapped struct {
			Tasks []TaskSeed `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(block), &wrapped); err == nil && len(wrapped.Tasks) > 0 {
			return wrapped.Tasks, nil
		}
	}

	if block := jsonBlock(reply, '[', ']'); block != "" {
		var seeds []TaskSeed
		if err := json.Unmarshal([]byte(block), &seeds); err == nil && len(seeds) > 0 {
			return seeds, nil
		}
	}

	if m := toolCallRe.FindStringSubmatch(reply); m != nil {
		return parseSeeds(m[1])
	}

	return nil, fmt.Errorf("no task list found in model reply")
}

// jsonBlock returns the outermost open..close span of reply, or "" when the
// delimiters are absent or inverted. Models wrap JSON in prose and code
// fences; slicing the span tolerates both.
func jsonBlock(reply string, open, close byte) string {
	start := strings.IndexByte(reply, open)
	end := strings.LastIndexByte(reply, close)
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}
