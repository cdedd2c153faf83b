// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a durable SQLite record of finished research runs
// so past sessions can be searched and exported.
// Implements: prd008-archive (R1-R4);
//
//	docs/ARCHITECTURE § Run Archive.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

const dbFile = "research.db"

// Store manages the run archive database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the archive database at dir/research.db, creating
// the schema when missing.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			report TEXT,
			cancelled INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			task_id INTEGER NOT NULL,
			title TEXT,
			intent TEXT,
			query TEXT,
			status TEXT,
			status_reason TEXT,
			summary TEXT,
			sources_summary TEXT,
			note_id TEXT,
			note_path TEXT,
			loop_count INTEGER,
			UNIQUE(session_id, task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over topic and report, with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sessions_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE sessions_fts USING fts5(topic, report, content=sessions, content_rowid=rowid)`,
			`CREATE TRIGGER sessions_ai AFTER INSERT ON sessions BEGIN
				INSERT INTO sessions_fts(rowid, topic, report) VALUES (new.rowid, new.topic, new.report);
			END`,
			`CREATE TRIGGER sessions_ad AFTER DELETE ON sessions BEGIN
				INSERT INTO sessions_fts(sessions_fts, rowid, topic, report) VALUES('delete', old.rowid, old.topic, old.report);
			END`,
			`CREATE TRIGGER sessions_au AFTER UPDATE ON sessions BEGIN
				INSERT INTO sessions_fts(sessions_fts, rowid, topic, report) VALUES('delete', old.rowid, old.topic, old.report);
				INSERT INTO sessions_fts(rowid, topic, report) VALUES (new.rowid, new.topic, new.report);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveRun records a finished session and its tasks in one transaction.
// Saving the same session again replaces its report and task rows but
// keeps the original created_at.
func (s *Store) SaveRun(ctx context.Context, session *types.ResearchSession, report string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cancelled := 0
	if session.Cancelled() {
		cancelled = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, topic, report, cancelled, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic=excluded.topic, report=excluded.report, cancelled=excluded.cancelled`,
		session.ID, session.Topic, report, cancelled,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("deleting old task rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (session_id, task_id, title, intent, query, status, status_reason,
			summary, sources_summary, note_id, note_path, loop_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing task insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range session.TodoItems {
		_, err := stmt.ExecContext(ctx,
			session.ID, item.ID, item.Title, item.Intent, item.Query,
			string(item.Status), item.StatusReason, item.Summary,
			item.SourcesSummary, item.NoteID, item.NotePath, item.LoopCount,
		)
		if err != nil {
			return fmt.Errorf("inserting task %d: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// QueryOptions selects archived runs.
type QueryOptions struct {
	// Match is an FTS5 expression over topic and report text.
	Match string

	// MaxResults limits the result count. Zero uses the store default.
	MaxResults int
}

// RunSummary is one archived run with task counts.
type RunSummary struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Topic     string    `json:"topic" yaml:"topic"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Cancelled bool      `json:"cancelled" yaml:"cancelled"`
	Tasks     int       `json:"tasks" yaml:"tasks"`
	Completed int       `json:"completed" yaml:"completed"`
}

// Query returns archived runs, ranked by relevance for a full-text match
// or by recency otherwise.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]RunSummary, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT s.id, s.topic, s.created_at, s.cancelled,
			(SELECT COUNT(*) FROM tasks t WHERE t.session_id = s.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.session_id = s.id AND t.status = 'completed')
		`)
	if opts.Match != "" {
		qb.WriteString(
			`FROM sessions_fts
			JOIN sessions s ON s.rowid = sessions_fts.rowid
			WHERE sessions_fts MATCH ?
			ORDER BY sessions_fts.rank`)
		args = append(args, opts.Match)
	} else {
		qb.WriteString(`FROM sessions s ORDER BY s.created_at DESC, s.rowid DESC`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			createdAt string
			cancelled int
		)
		if err := rows.Scan(&r.SessionID, &r.Topic, &createdAt, &cancelled, &r.Tasks, &r.Completed); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		r.Cancelled = cancelled == 1
		results = append(results, r)
	}
	return results, rows.Err()
}

// Report returns the stored report markdown for one session.
func (s *Store) Report(ctx context.Context, sessionID string) (string, error) {
	var report sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM sessions WHERE id = ?`, sessionID,
	).Scan(&report)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return report.String, nil
}

// Tasks returns the archived task rows for one session in task order.
func (s *Store) Tasks(ctx context.Context, sessionID string) ([]types.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, title, intent, query, status, status_reason,
			summary, sources_summary, note_id, note_path, loop_count
		 FROM tasks WHERE session_id = ? ORDER BY task_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var items []types.TodoItem
	for rows.Next() {
		var (
			item   types.TodoItem
			status string
		)
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Intent, &item.Query, &status,
			&item.StatusReason, &item.Summary, &item.SourcesSummary,
			&item.NoteID, &item.NotePath, &item.LoopCount,
		); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		item.Status = types.TaskStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}
