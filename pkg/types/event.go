// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventType names one kind of progress event. Events for a session are
// emitted in task/round order and delivered to the session's listener in
// emission order. Per prd007-http-service R3.1-R3.4.
type EventType string

const (
	// EventResearchPlanned carries the seeded task list and the session ID.
	EventResearchPlanned EventType = "research_planned"

	// EventTaskStarted marks a task's pending -> running transition.
	EventTaskStarted EventType = "task_started"

	// EventTaskProgress is emitted after every round, productive or not.
	EventTaskProgress EventType = "task_progress"

	// EventTaskCompleted marks a task reaching a terminal status.
	EventTaskCompleted EventType = "task_completed"

	// EventResearchCompleted ends a run that was not cancelled. It carries
	// the same payload as the synchronous response.
	EventResearchCompleted EventType = "research_completed"

	// EventResearchCancelled ends a cancelled run, carrying the partial
	// report built from whatever tasks completed.
	EventResearchCancelled EventType = "research_cancelled"
)

// Event is one typed progress notification. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	// Task is the snapshot of the item the event concerns, for
	// task_started, task_progress, and task_completed.
	Task *TodoItem `json:"task,omitempty"`

	// Round is the 1-based round number for task_progress events.
	Round int `json:"round,omitempty"`

	// Fragment is the incremental summary text available after a round.
	Fragment string `json:"fragment,omitempty"`

	// Items carries the full task list for research_planned and the two
	// terminal event types.
	Items []TodoItem `json:"items,omitempty"`

	// ReportMarkdown is set on research_completed and research_cancelled.
	ReportMarkdown string `json:"report_markdown,omitempty"`
}
