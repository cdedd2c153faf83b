package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	store, err := Open(types.ArchiveConfig{Dir: tmpDir, MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func sampleSession(id, topic string) *types.ResearchSession {
	return &types.ResearchSession{
		ID:    id,
		Topic: topic,
		TodoItems: []*types.TodoItem{
			{
				ID: 1, Title: "Origins", Intent: "Trace the origins", Query: "origins query",
				Status: types.StatusCompleted, Summary: "Summary of origins.",
				SourcesSummary: "* Source A : https://a.example\n",
				NoteID:         "abc123def456", NotePath: "/notes/abc123def456.md",
				LoopCount: 2,
			},
			{
				ID: 2, Title: "Trade routes", Intent: "Map the trade routes", Query: "trade query",
				Status: types.StatusSkipped, StatusReason: types.ReasonNoResults,
				LoopCount: 3,
			},
		},
	}
}

func saveHelper(t *testing.T, store *Store, session *types.ResearchSession, report string) {
	t.Helper()
	if err := store.SaveRun(context.Background(), session, report); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestOpenCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	tables := []string{"sessions", "tasks", "sessions_fts"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestOpenCreatesDBFile(t *testing.T) {
	_, tmpDir := testSetup(t)

	if _, err := os.Stat(filepath.Join(tmpDir, dbFile)); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", filepath.Join(tmpDir, dbFile))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := types.ArchiveConfig{Dir: tmpDir}

	first, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	saveHelper(t, first, sampleSession("session-1", "tea history"), "report body")
	first.Close()

	// Reopening an existing archive must not fail or lose data.
	second, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	runs, err := second.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs after reopen, want 1", len(runs))
	}
}

// --- save tests ---

func TestSaveRunRoundTrip(t *testing.T) {
	store, _ := testSetup(t)
	session := sampleSession("session-rt", "history of tea")
	saveHelper(t, store, session, "# Research Report: history of tea\n\nBody.")

	runs, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.SessionID != "session-rt" {
		t.Errorf("SessionID = %q, want %q", run.SessionID, "session-rt")
	}
	if run.Topic != "history of tea" {
		t.Errorf("Topic = %q, want %q", run.Topic, "history of tea")
	}
	if run.Tasks != 2 {
		t.Errorf("Tasks = %d, want 2", run.Tasks)
	}
	if run.Completed != 1 {
		t.Errorf("Completed = %d, want 1", run.Completed)
	}
	if run.Cancelled {
		t.Error("Cancelled = true, want false")
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	report, err := store.Report(context.Background(), "session-rt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "history of tea") {
		t.Errorf("report = %q, should contain the topic", report)
	}
}

func TestSaveRunStoresAllTaskFields(t *testing.T) {
	store, _ := testSetup(t)
	saveHelper(t, store, sampleSession("session-fields", "tea"), "report")

	tasks, err := store.Tasks(context.Background(), "session-fields")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	first := tasks[0]
	if first.ID != 1 {
		t.Errorf("ID = %d, want 1", first.ID)
	}
	if first.Title != "Origins" {
		t.Errorf("Title = %q, want %q", first.Title, "Origins")
	}
	if first.Intent != "Trace the origins" {
		t.Errorf("Intent = %q", first.Intent)
	}
	if first.Query != "origins query" {
		t.Errorf("Query = %q", first.Query)
	}
	if first.Status != types.StatusCompleted {
		t.Errorf("Status = %q, want completed", first.Status)
	}
	if first.Summary != "Summary of origins." {
		t.Errorf("Summary = %q", first.Summary)
	}
	if first.SourcesSummary == "" {
		t.Error("SourcesSummary not stored")
	}
	if first.NoteID != "abc123def456" {
		t.Errorf("NoteID = %q", first.NoteID)
	}
	if first.NotePath != "/notes/abc123def456.md" {
		t.Errorf("NotePath = %q", first.NotePath)
	}
	if first.LoopCount != 2 {
		t.Errorf("LoopCount = %d, want 2", first.LoopCount)
	}

	second := tasks[1]
	if second.Status != types.StatusSkipped {
		t.Errorf("Status = %q, want skipped", second.Status)
	}
	if second.StatusReason != types.ReasonNoResults {
		t.Errorf("StatusReason = %q, want %q", second.StatusReason, types.ReasonNoResults)
	}
}

func TestSaveRunReplacesExistingSession(t *testing.T) {
	store, _ := testSetup(t)
	session := sampleSession("session-replace", "tea")
	saveHelper(t, store, session, "first report")

	// Save the same session again with a different report and fewer tasks.
	session.TodoItems = session.TodoItems[:1]
	saveHelper(t, store, session, "second report")

	runs, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1 (re-save must not duplicate)", len(runs))
	}
	if runs[0].Tasks != 1 {
		t.Errorf("Tasks = %d, want 1 after re-save", runs[0].Tasks)
	}

	report, err := store.Report(context.Background(), "session-replace")
	if err != nil {
		t.Fatal(err)
	}
	if report != "second report" {
		t.Errorf("report = %q, want %q", report, "second report")
	}
}

func TestSaveRunRecordsCancellation(t *testing.T) {
	store, _ := testSetup(t)
	session := sampleSession("session-cancel", "tea")
	session.Cancel()
	saveHelper(t, store, session, "partial report")

	runs, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if !runs[0].Cancelled {
		t.Error("Cancelled = false, want true")
	}
}

// --- query tests ---

func TestQueryFullTextMatch(t *testing.T) {
	store, _ := testSetup(t)
	saveHelper(t, store, sampleSession("session-tea", "history of tea"),
		"Tea fermentation spread along trade routes.")
	saveHelper(t, store, sampleSession("session-rail", "history of railways"),
		"Railways reshaped freight economics.")

	runs, err := store.Query(context.Background(), QueryOptions{Match: "fermentation"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].SessionID != "session-tea" {
		t.Errorf("SessionID = %q, want session-tea", runs[0].SessionID)
	}
}

func TestQueryMatchesTopic(t *testing.T) {
	store, _ := testSetup(t)
	saveHelper(t, store, sampleSession("session-topic", "quantum error correction"), "body text")

	runs, err := store.Query(context.Background(), QueryOptions{Match: "quantum"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs, want 1 (match should cover the topic column)", len(runs))
	}
}

func TestQueryRecencyOrder(t *testing.T) {
	store, _ := testSetup(t)
	saveHelper(t, store, sampleSession("session-old", "older run"), "r1")
	saveHelper(t, store, sampleSession("session-new", "newer run"), "r2")

	runs, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].SessionID != "session-new" {
		t.Errorf("first run = %q, want the most recent session", runs[0].SessionID)
	}
}

func TestQueryRespectsMaxResults(t *testing.T) {
	store, _ := testSetup(t)
	for _, id := range []string{"s1", "s2", "s3"} {
		saveHelper(t, store, sampleSession(id, "topic "+id), "report "+id)
	}

	runs, err := store.Query(context.Background(), QueryOptions{MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestQueryNoMatch(t *testing.T) {
	store, _ := testSetup(t)
	saveHelper(t, store, sampleSession("session-1", "tea"), "report body")

	runs, err := store.Query(context.Background(), QueryOptions{Match: "xyzzy"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}

func TestReportUnknownSession(t *testing.T) {
	store, _ := testSetup(t)

	_, err := store.Report(context.Background(), "missing-session")
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want 'not found'", err.Error())
	}
}

func TestTasksUnknownSession(t *testing.T) {
	store, _ := testSetup(t)

	tasks, err := store.Tasks(context.Background(), "missing-session")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(tasks))
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	saveHelper(t, store, sampleSession("session-y1", "tea"), "tea report")
	saveHelper(t, store, sampleSession("session-y2", "rail"), "rail report")

	path := filepath.Join(tmpDir, "export.yaml")
	if err := store.ExportYAML(context.Background(), QueryOptions{}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Report == "" {
			t.Errorf("entry %s missing report", e.SessionID)
		}
		if len(e.Tasks) != 2 {
			t.Errorf("entry %s has %d tasks, want 2", e.SessionID, len(e.Tasks))
		}
	}
}

func TestExportJSON(t *testing.T) {
	store, tmpDir := testSetup(t)
	saveHelper(t, store, sampleSession("session-j1", "tea"), "tea report")

	path := filepath.Join(tmpDir, "export.json")
	if err := store.ExportJSON(context.Background(), QueryOptions{}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Topic != "tea" {
		t.Errorf("Topic = %q, want tea", entries[0].Topic)
	}
}

func TestExportFilteredByMatch(t *testing.T) {
	store, tmpDir := testSetup(t)
	saveHelper(t, store, sampleSession("session-f1", "tea"), "fermentation notes")
	saveHelper(t, store, sampleSession("session-f2", "rail"), "freight notes")

	path := filepath.Join(tmpDir, "export.yaml")
	if err := store.ExportYAML(context.Background(), QueryOptions{Match: "fermentation"}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].SessionID != "session-f1" {
		t.Errorf("SessionID = %q, want session-f1", entries[0].SessionID)
	}
}
