// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeLLM returns a canned reply or error and records the prompt it saw.
type fakeLLM struct {
	reply string
	err   error

	gotSystem string
	gotUser   string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.gotSystem = system
	f.gotUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestPlanParsesTasksObject(t *testing.T) {
	client := &fakeLLM{reply: `{"tasks": [
		{"title": "Origins", "intent": "Where tea started.", "query": "history of tea origins"},
		{"title": "Trade", "intent": "How tea spread.", "query": "tea trade routes"}
	]}`}
	seeds, err := New(client).Plan(context.Background(), "history of tea")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(seeds))
	}
	if seeds[0].Title != "Origins" || seeds[0].Query != "history of tea origins" {
		t.Errorf("unexpected first seed: %+v", seeds[0])
	}
	if seeds[1].Title != "Trade" {
		t.Errorf("unexpected second seed: %+v", seeds[1])
	}
}

func TestPlanParsesBareArray(t *testing.T) {
	client := &fakeLLM{reply: `Here is the plan:
[{"title": "Basics", "intent": "Define the subject.", "query": "what is fermentation"}]`}
	seeds, err := New(client).Plan(context.Background(), "fermentation")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(seeds) != 1 || seeds[0].Title != "Basics" {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}
}

func TestPlanParsesFencedJSON(t *testing.T) {
	client := &fakeLLM{reply: "```json\n{\"tasks\": [{\"title\": \"Climate\", \"query\": \"alpine climate zones\"}]}\n```"}
	seeds, err := New(client).Plan(context.Background(), "alpine ecosystems")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(seeds) != 1 || seeds[0].Title != "Climate" {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}
}

func TestPlanParsesToolCallFallback(t *testing.T) {
	client := &fakeLLM{reply: `[TOOL_CALL: create_research_plan({"tasks": [{"title": "Habitat", "intent": "Where they live.", "query": "giant squid habitat"}]})]`}
	seeds, err := New(client).Plan(context.Background(), "giant squid")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(seeds) != 1 || seeds[0].Query != "giant squid habitat" {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}
}

func TestPlanFillsMissingFields(t *testing.T) {
	client := &fakeLLM{reply: `{"tasks": [
		{"title": "Overview"},
		{"title": "", "query": "dropped because no title"},
		{"title": "Depth", "intent": "Go deeper.", "query": "  deep dive  "}
	]}`}
	seeds, err := New(client).Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("got %d seeds, want 2 (untitled seed dropped): %+v", len(seeds), seeds)
	}
	if seeds[0].Query != "Overview" || seeds[0].Intent != "Overview" {
		t.Errorf("missing fields should default to title, got %+v", seeds[0])
	}
	if seeds[1].Query != "deep dive" {
		t.Errorf("query should be trimmed, got %q", seeds[1].Query)
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		client *fakeLLM
	}{
		{"empty topic", "   ", &fakeLLM{reply: `{"tasks": [{"title": "x"}]}`}},
		{"model error", "tea", &fakeLLM{err: errors.New("backend down")}},
		{"no json in reply", "tea", &fakeLLM{reply: "I cannot help with that."}},
		{"empty tasks array", "tea", &fakeLLM{reply: `{"tasks": []}`}},
		{"all seeds untitled", "tea", &fakeLLM{reply: `{"tasks": [{"query": "q1"}, {"query": "q2"}]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client).Plan(context.Background(), tt.topic)
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *PlanningError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PlanningError, got %T: %v", err, err)
			}
		})
	}
}

func TestPlanPromptContainsTopic(t *testing.T) {
	client := &fakeLLM{reply: `{"tasks": [{"title": "x"}]}`}
	if _, err := New(client).Plan(context.Background(), "ocean acidification"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if client.gotSystem == "" {
		t.Error("expected a system prompt")
	}
	if want := "ocean acidification"; !strings.Contains(client.gotUser, want) {
		t.Errorf("user prompt does not mention topic %q", want)
	}
}
