// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator drives a research session end to end: planning,
// bounded search/summarize rounds per task, note persistence, report
// composition, and the typed progress event stream.
// Implements: prd006-orchestration (R1-R5);
//
//	docs/ARCHITECTURE § Orchestration State Machine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/deep-researcher/internal/planner"
	"github.com/pdiddy/deep-researcher/internal/search"
	"github.com/pdiddy/deep-researcher/internal/summarize"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// Retry bounds for the two retryable suspension points. The bounds are per
// round; the next round starts fresh.
const (
	searchAttempts    = 3
	summarizeAttempts = 3
)

// retryDelay is the base backoff between attempts, doubled per attempt.
// Package variable so tests can shrink it.
var retryDelay = time.Second

// Planner yields the ordered task seeds for a topic.
type Planner interface {
	Plan(ctx context.Context, topic string) ([]planner.TaskSeed, error)
}

// Summarizer runs one summarization round.
type Summarizer interface {
	Summarize(ctx context.Context, req summarize.Request) (summarize.Result, error)
}

// Reporter composes the final report. The returned markdown must be usable
// even when the error is non-nil (deterministic fallback).
type Reporter interface {
	Compose(ctx context.Context, topic string, items []types.TodoItem) (string, error)
}

// NoteStore persists completed tasks and the final report.
type NoteStore interface {
	Save(sessionID, topic string, item types.TodoItem) (types.Note, error)
	SaveReport(sessionID, topic, markdown string) (types.Note, error)
}

// Archiver records finished runs for later querying.
type Archiver interface {
	SaveRun(ctx context.Context, session *types.ResearchSession, report string) error
}

// Options wires an Orchestrator. Planner, Search, Summarizer, and Reporter
// are required; Notes and Archive are optional features.
type Options struct {
	Planner    Planner
	Search     search.Provider
	Summarizer Summarizer
	Reporter   Reporter
	Notes      NoteStore
	Archive    Archiver

	// MaxLoops bounds search/summarize rounds per task. Must be >= 1.
	MaxLoops int

	// Policy decides round continuation. Defaults to DefaultRoundPolicy.
	Policy RoundPolicy

	// Log receives warning lines for degraded-but-continuing conditions.
	// Defaults to io.Discard.
	Log io.Writer
}

// Orchestrator owns the session state machine. One Orchestrator serves any
// number of sequential or concurrent Run calls; all per-run state lives in
// the session.
type Orchestrator struct {
	planner  Planner
	search   search.Provider
	summ     Summarizer
	reporter Reporter
	notes    NoteStore
	archive  Archiver
	maxLoops int
	policy   RoundPolicy
	log      io.Writer
}

// New validates the wiring and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Planner == nil || opts.Search == nil || opts.Summarizer == nil || opts.Reporter == nil {
		return nil, fmt.Errorf("orchestrator: planner, search, summarizer, and reporter are required")
	}
	if opts.MaxLoops < 1 {
		return nil, fmt.Errorf("orchestrator: max loops must be at least 1, got %d", opts.MaxLoops)
	}
	if opts.Policy == nil {
		opts.Policy = DefaultRoundPolicy
	}
	if opts.Log == nil {
		opts.Log = io.Discard
	}
	return &Orchestrator{
		planner:  opts.Planner,
		search:   opts.Search,
		summ:     opts.Summarizer,
		reporter: opts.Reporter,
		notes:    opts.Notes,
		archive:  opts.Archive,
		maxLoops: opts.MaxLoops,
		policy:   opts.Policy,
		log:      opts.Log,
	}, nil
}

// NewSession creates an empty session for a topic with a fresh ID.
func NewSession(topic string) *types.ResearchSession {
	return &types.ResearchSession{ID: uuid.NewString(), Topic: topic}
}

// Run drives a session from topic to final report. It returns an error only
// for planning failure; every later problem degrades the affected task or
// the report, never the whole run. Events go to sink in emission order; a
// nil sink discards them.
func (o *Orchestrator) Run(ctx context.Context, session *types.ResearchSession, sink Sink) (*types.ResearchResponse, error) {
	if sink == nil {
		sink = Discard
	}

	if !o.halted(ctx, session) {
		seeds, err := o.planner.Plan(ctx, session.Topic)
		if err != nil {
			return nil, err
		}
		session.TodoItems = make([]*types.TodoItem, len(seeds))
		for i, seed := range seeds {
			session.TodoItems[i] = &types.TodoItem{
				ID:     i + 1,
				Title:  seed.Title,
				Intent: seed.Intent,
				Query:  seed.Query,
				Status: types.StatusPending,
			}
		}
		sink.Emit(types.Event{
			Type:      types.EventResearchPlanned,
			SessionID: session.ID,
			Items:     session.Snapshot(),
		})
	}

	cancelled := false
	for _, item := range session.TodoItems {
		if o.halted(ctx, session) {
			cancelled = true
			break
		}
		if o.runItem(ctx, session, item, sink) {
			cancelled = true
			break
		}
	}
	cancelled = cancelled || o.halted(ctx, session)

	if cancelled {
		for _, item := range session.TodoItems {
			if item.Status.Terminal() {
				continue
			}
			item.StatusReason = types.ReasonCancelled
			if err := item.Transition(types.StatusSkipped); err != nil {
				o.warnf("task %d: %v", item.ID, err)
			}
		}
	}

	report, err := o.reporter.Compose(ctx, session.Topic, session.Snapshot())
	if err != nil {
		o.warnf("report polish unavailable, deterministic assembly used: %v", err)
	}

	resp := &types.ResearchResponse{
		SessionID:      session.ID,
		Topic:          session.Topic,
		ReportMarkdown: report,
		TodoItems:      session.Snapshot(),
		Cancelled:      cancelled,
	}

	if o.notes != nil && report != "" {
		note, err := o.notes.SaveReport(session.ID, session.Topic, report)
		if err != nil {
			o.warnf("saving report note: %v", err)
		} else {
			resp.ReportNoteID = note.ID
			resp.ReportNotePath = note.Path
		}
	}

	if o.archive != nil {
		// Archived with a fresh context: a disconnected requester must not
		// lose the durable record of a finished run.
		if err := o.archive.SaveRun(context.Background(), session, report); err != nil {
			o.warnf("archiving run: %v", err)
		}
	}

	evType := types.EventResearchCompleted
	if cancelled {
		evType = types.EventResearchCancelled
	}
	sink.Emit(types.Event{
		Type:           evType,
		SessionID:      session.ID,
		Items:          resp.TodoItems,
		ReportMarkdown: report,
	})
	return resp, nil
}

// runItem drives one task through its bounded rounds. It returns true when
// cancellation was observed, so the session loop can short-circuit the
// remaining tasks.
func (o *Orchestrator) runItem(ctx context.Context, session *types.ResearchSession, item *types.TodoItem, sink Sink) bool {
	if err := item.Transition(types.StatusRunning); err != nil {
		o.warnf("task %d: %v", item.ID, err)
		return false
	}
	o.emitTask(session, types.EventTaskStarted, item, 0, "", sink)

	var summary, sources string
	lastReason := types.ReasonNoResults

	for round := 1; round <= o.maxLoops; round++ {
		if o.halted(ctx, session) {
			o.finish(session, item, types.StatusSkipped, types.ReasonCancelled, sink)
			return true
		}
		item.LoopCount = round
		final := round == o.maxLoops

		results, err := o.searchWithRetry(ctx, item.Query)
		if err != nil || len(results) == 0 {
			lastReason = types.ReasonNoResults
			if err != nil {
				lastReason = types.ReasonProviderError
				o.warnf("task %d round %d: search: %v", item.ID, round, err)
			}
			o.emitTask(session, types.EventTaskProgress, item, round, "", sink)
			if !final {
				continue
			}
			if summary != "" {
				// Earlier rounds already produced findings; an unproductive
				// last round does not discard them.
				o.complete(session, item, summary, sources, sink)
				return false
			}
			o.finish(session, item, types.StatusSkipped, lastReason, sink)
			return false
		}

		res, err := o.summarizeWithRetry(ctx, item, summary, results)
		if err != nil {
			o.warnf("task %d round %d: %v", item.ID, round, err)
			o.emitTask(session, types.EventTaskProgress, item, round, "", sink)
			if final {
				o.finish(session, item, types.StatusFailed, types.ReasonSummaryError, sink)
				return false
			}
			continue
		}

		summary = res.Summary
		sources = mergeSourceLines(sources, res.SourcesSummary)
		o.emitTask(session, types.EventTaskProgress, item, round, res.Summary, sink)

		if again, next := o.policy(round, o.maxLoops, res); again && next != "" && !final {
			item.Query = next
			continue
		}
		o.complete(session, item, summary, sources, sink)
		return false
	}

	// Reachable only if a policy asked past the round bound; the bound wins.
	if summary != "" {
		o.complete(session, item, summary, sources, sink)
	} else {
		o.finish(session, item, types.StatusSkipped, lastReason, sink)
	}
	return false
}

// complete records the task's findings, persists the note when the store is
// enabled, and transitions to completed. Note failure degrades to a task
// without note pointers; the findings still stand.
func (o *Orchestrator) complete(session *types.ResearchSession, item *types.TodoItem, summary, sources string, sink Sink) {
	item.Summary = summary
	item.SourcesSummary = sources
	if o.notes != nil {
		note, err := o.notes.Save(session.ID, session.Topic, *item)
		if err != nil {
			o.warnf("task %d: saving note: %v", item.ID, err)
		} else {
			item.NoteID = note.ID
			item.NotePath = note.Path
		}
	}
	if err := item.Transition(types.StatusCompleted); err != nil {
		o.warnf("task %d: %v", item.ID, err)
	}
	o.emitTask(session, types.EventTaskCompleted, item, 0, "", sink)
}

// finish moves the task to a terminal non-completed status with its reason.
func (o *Orchestrator) finish(session *types.ResearchSession, item *types.TodoItem, status types.TaskStatus, reason string, sink Sink) {
	item.StatusReason = reason
	if err := item.Transition(status); err != nil {
		o.warnf("task %d: %v", item.ID, err)
	}
	o.emitTask(session, types.EventTaskCompleted, item, 0, "", sink)
}

// searchWithRetry calls the provider with bounded backoff. Auth failures
// are not retried; new credentials will not appear between attempts.
func (o *Orchestrator) searchWithRetry(ctx context.Context, query string) ([]types.SearchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= searchAttempts; attempt++ {
		if attempt > 1 {
			sleep(ctx, retryDelay*time.Duration(1<<(attempt-2)))
		}
		results, err := o.search.Search(ctx, query)
		if err == nil {
			return results, nil
		}
		lastErr = err
		var se *search.Error
		if errors.As(err, &se) && se.Cause == search.CauseAuth {
			break
		}
	}
	return nil, lastErr
}

// summarizeWithRetry calls the summarizer with bounded backoff.
func (o *Orchestrator) summarizeWithRetry(ctx context.Context, item *types.TodoItem, existing string, results []types.SearchResult) (summarize.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= summarizeAttempts; attempt++ {
		if attempt > 1 {
			sleep(ctx, retryDelay*time.Duration(1<<(attempt-2)))
		}
		res, err := o.summ.Summarize(ctx, summarize.Request{
			Intent:   item.Intent,
			Query:    item.Query,
			Existing: existing,
			Results:  results,
		})
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return summarize.Result{}, lastErr
}

// halted reports whether the run should stop at this suspension point,
// either through the session's cancel flag or the request context.
func (o *Orchestrator) halted(ctx context.Context, session *types.ResearchSession) bool {
	return session.Cancelled() || ctx.Err() != nil
}

func (o *Orchestrator) emitTask(session *types.ResearchSession, t types.EventType, item *types.TodoItem, round int, fragment string, sink Sink) {
	snap := *item
	sink.Emit(types.Event{
		Type:      t,
		SessionID: session.ID,
		Task:      &snap,
		Round:     round,
		Fragment:  fragment,
	})
}

func (o *Orchestrator) warnf(format string, args ...any) {
	fmt.Fprintf(o.log, "warning: "+format+"\n", args...)
}

// mergeSourceLines unions two bullet lists, preserving first-seen order.
func mergeSourceLines(existing, added string) string {
	if existing == "" {
		return added
	}
	if added == "" {
		return existing
	}
	seen := make(map[string]bool)
	var lines []string
	for _, line := range strings.Split(existing+"\n"+added, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
