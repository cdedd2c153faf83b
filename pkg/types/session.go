// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sync/atomic"

// ResearchSession is one end-to-end run from topic submission to final
// report. A session is exclusively owned by the orchestrator run driving
// it; only the cancel flag is safe to touch from other goroutines.
// Per prd006-orchestration R2.1-R2.4.
type ResearchSession struct {
	// ID identifies the session (UUID), used by the cancel endpoint.
	ID string `json:"id" yaml:"id"`

	// Topic is the immutable research topic.
	Topic string `json:"topic" yaml:"topic"`

	// TodoItems holds the planned tasks in planning order. Planning order
	// is display order and report order.
	TodoItems []*TodoItem `json:"todo_items" yaml:"todo_items"`

	cancelled atomic.Bool
}

// Cancel sets the session's cancel flag. The flag latches: once set it is
// never cleared, and repeated calls are no-ops. The orchestrator observes
// it cooperatively at suspension points only; in-flight external calls run
// to completion and their results are discarded.
func (s *ResearchSession) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (s *ResearchSession) Cancelled() bool {
	return s.cancelled.Load()
}

// Item returns the task with the given ID, or nil when absent.
func (s *ResearchSession) Item(id int) *TodoItem {
	for _, t := range s.TodoItems {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Snapshot returns value copies of the session's tasks in planning order,
// suitable for embedding in responses and events.
func (s *ResearchSession) Snapshot() []TodoItem {
	items := make([]TodoItem, len(s.TodoItems))
	for i, t := range s.TodoItems {
		items[i] = *t
	}
	return items
}
