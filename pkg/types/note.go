// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// NoteKind distinguishes per-task notes from the persisted final report.
type NoteKind string

const (
	NoteTask   NoteKind = "task"
	NoteReport NoteKind = "report"
)

// Note is the durable artifact persisted for one completed task (or the
// final report). Per prd005-notes R2.1: every completed TodoItem has
// exactly one Note, and the index never references a Note whose backing
// content is missing.
type Note struct {
	// ID is derived from the (session, task) pair, so re-saving the same
	// completed task yields the same note rather than a duplicate.
	ID string `json:"id" yaml:"id"`

	// Path is the location of the persisted markdown content.
	Path string `json:"path" yaml:"path"`

	// Topic is the research topic the note belongs to.
	Topic string `json:"topic" yaml:"topic"`

	// CreatedAt is the time the note was first registered in the index.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// SourceTaskID links back to the TodoItem (0 for report notes).
	SourceTaskID int `json:"source_task_id" yaml:"source_task_id"`

	// Kind is "task" for per-task notes and "report" for the final report.
	Kind NoteKind `json:"kind" yaml:"kind"`
}

// NotesIndex maps note IDs to metadata. It is persisted as a single YAML
// file, append-only in normal operation, and rewritten wholesale through
// an atomic replace on every update.
type NotesIndex struct {
	Version string `json:"version" yaml:"version"`
	Entries []Note `json:"entries" yaml:"entries"`
}
