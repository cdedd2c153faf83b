// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// SearchAPI selects the web search backend for a session.
// Per prd002-web-search R1.1.
type SearchAPI string

const (
	SearchDuckDuckGo SearchAPI = "duckduckgo"
	SearchTavily     SearchAPI = "tavily"
	SearchPerplexity SearchAPI = "perplexity"
	SearchSearxng    SearchAPI = "searxng"
)

// ValidSearchAPI reports whether name is a known backend selector.
func ValidSearchAPI(name SearchAPI) bool {
	switch name {
	case SearchDuckDuckGo, SearchTavily, SearchPerplexity, SearchSearxng:
		return true
	}
	return false
}

// ResearchRequest is the structured input submitting a topic.
type ResearchRequest struct {
	// Topic is the natural-language research topic. Required.
	Topic string `json:"topic" yaml:"topic"`

	// SearchAPI optionally overrides the configured backend for this run.
	SearchAPI SearchAPI `json:"search_api,omitempty" yaml:"search_api,omitempty"`
}

// Validate checks the request before a session is created.
func (r ResearchRequest) Validate() error {
	if r.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if r.SearchAPI != "" && !ValidSearchAPI(r.SearchAPI) {
		return fmt.Errorf("unknown search_api %q", r.SearchAPI)
	}
	return nil
}

// ResearchResponse is the synchronous result of a run and the payload of
// the final streamed event.
type ResearchResponse struct {
	SessionID      string     `json:"session_id" yaml:"session_id"`
	Topic          string     `json:"topic" yaml:"topic"`
	ReportMarkdown string     `json:"report_markdown" yaml:"report_markdown"`
	TodoItems      []TodoItem `json:"todo_items" yaml:"todo_items"`

	// ReportNoteID and ReportNotePath point at the persisted report note
	// when the notes workspace is enabled.
	ReportNoteID   string `json:"report_note_id,omitempty" yaml:"report_note_id,omitempty"`
	ReportNotePath string `json:"report_note_path,omitempty" yaml:"report_note_path,omitempty"`

	// Cancelled is true when the run ended through cancellation and the
	// report covers only the tasks completed before the request.
	Cancelled bool `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}
