// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-researcher engine.
// Implements: prd006-orchestration (TodoItem, ResearchSession, R1-R3);
//
//	prd002-web-search (SearchResult, R4.1);
//	prd005-notes (Note, NotesIndex, R2.1-R2.4);
//	prd007-http-service (ResearchRequest, ResearchResponse, Event).
//
// See docs/ARCHITECTURE.md § Engine Interface, § Data Structures.
package types

import "fmt"

// TaskStatus tracks a TodoItem through its lifecycle. Transitions move
// forward only: pending -> running -> {completed | skipped | failed}.
// Per prd006-orchestration R1.2.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusSkipped   TaskStatus = "skipped"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is one of the three end states.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

// Skip and failure reasons surfaced to the user. Per prd006-orchestration
// R4.3 the reason distinguishes an empty query from a provider or model
// problem.
const (
	ReasonNoResults     = "no results"
	ReasonProviderError = "provider error"
	ReasonSummaryError  = "summarization error"
	ReasonCancelled     = "cancelled"
)

// TodoItem is one decomposed research sub-task. IDs are assigned at
// planning time, are unique within a session, and never change. Title and
// Intent are set by the planner and immutable; Query is rewritten between
// rounds only by the orchestrator.
type TodoItem struct {
	// ID is the task's position-derived identifier, stable for its lifetime.
	ID int `json:"id" yaml:"id"`

	// Title is the short human-readable task name.
	Title string `json:"title" yaml:"title"`

	// Intent describes what the task is trying to find out.
	Intent string `json:"intent" yaml:"intent"`

	// Query is the current search query. Mutable only by the orchestrator.
	Query string `json:"query" yaml:"query"`

	// Status is the task's lifecycle state.
	Status TaskStatus `json:"status" yaml:"status"`

	// StatusReason explains a skipped or failed status in one short phrase.
	StatusReason string `json:"status_reason,omitempty" yaml:"status_reason,omitempty"`

	// Summary is the research summary, set once on completion.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// SourcesSummary is the condensed source list, set once on completion.
	SourcesSummary string `json:"sources_summary,omitempty" yaml:"sources_summary,omitempty"`

	// NoteID and NotePath are set once after the note store persists the task.
	NoteID   string `json:"note_id,omitempty" yaml:"note_id,omitempty"`
	NotePath string `json:"note_path,omitempty" yaml:"note_path,omitempty"`

	// LoopCount is the number of search/summarize rounds actually executed.
	LoopCount int `json:"loop_count" yaml:"loop_count"`
}

// Transition moves the item to next, enforcing forward-only movement.
// Terminal states never revert. A pending item may start running, or be
// skipped directly when session cancellation short-circuits tasks that
// never started.
func (t *TodoItem) Transition(next TaskStatus) error {
	if t.Status.Terminal() {
		return fmt.Errorf("task %d: status %s is terminal, cannot become %s", t.ID, t.Status, next)
	}
	switch {
	case t.Status == StatusPending && next == StatusRunning:
	case t.Status == StatusPending && next == StatusSkipped:
	case t.Status == StatusRunning && next.Terminal():
	default:
		return fmt.Errorf("task %d: invalid transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

// SearchResult is one ranked snippet returned by a search backend.
// Per prd002-web-search R4.1.
type SearchResult struct {
	// Title is the result's display title.
	Title string `json:"title" yaml:"title"`

	// URL is the result's source location.
	URL string `json:"url" yaml:"url"`

	// Snippet is the short relevance excerpt from the backend.
	Snippet string `json:"snippet" yaml:"snippet"`

	// RawContent holds the stripped page text when full-page fetch is on.
	RawContent string `json:"raw_content,omitempty" yaml:"raw_content,omitempty"`
}
