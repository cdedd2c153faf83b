// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notes persists one durable markdown note per completed research
// task and maintains the YAML index mapping note IDs to their files.
// Implements: prd005-notes (R1-R4);
//
//	docs/ARCHITECTURE § Notes Workspace.
package notes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

const (
	indexFile    = "index.yaml"
	indexVersion = "1"
)

// Store is the notes workspace: one markdown file per note plus a single
// index file. Content writes are lock-free; only index mutation is
// serialized, so concurrent sessions never interleave partial index writes.
type Store struct {
	dir string

	mu    sync.Mutex
	index types.NotesIndex
}

// Open prepares the workspace directory and loads the existing index if one
// is present. A corrupt index is an error at open time, not at save time.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("notes workspace directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating notes workspace: %w", err)
	}

	s := &Store{dir: dir, index: types.NotesIndex{Version: indexVersion}}

	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading notes index: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.index); err != nil {
		return nil, fmt.Errorf("parsing notes index: %w", err)
	}
	if s.index.Version == "" {
		s.index.Version = indexVersion
	}
	return s, nil
}

// Dir returns the workspace directory.
func (s *Store) Dir() string { return s.dir }

// Save persists a completed task as a note. It is idempotent per
// (session, task) pair: the note ID derives from the pair, so a re-save
// rewrites the content file and returns the existing index entry instead of
// creating a duplicate. Content is written before the index is updated; the
// index entry is the commit point.
func (s *Store) Save(sessionID, topic string, item types.TodoItem) (types.Note, error) {
	id := noteID(sessionID, item.ID)
	content := renderTaskNote(topic, item)
	return s.put(types.Note{
		ID:           id,
		Path:         filepath.Join(s.dir, id+".md"),
		Topic:        topic,
		SourceTaskID: item.ID,
		Kind:         types.NoteTask,
	}, content)
}

// SaveReport persists the final report as a note of kind "report", with
// task ID 0, under the same idempotence rule as Save.
func (s *Store) SaveReport(sessionID, topic, markdown string) (types.Note, error) {
	id := noteID(sessionID, 0)
	return s.put(types.Note{
		ID:           id,
		Path:         filepath.Join(s.dir, id+".md"),
		Topic:        topic,
		SourceTaskID: 0,
		Kind:         types.NoteReport,
	}, markdown)
}

// List returns a copy of the index entries in registration order.
func (s *Store) List() []types.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Note, len(s.index.Entries))
	copy(out, s.index.Entries)
	return out
}

// put writes the content file, then registers the note in the index under
// the single-writer lock. An existing entry with the same ID wins: its
// CreatedAt is preserved and no duplicate is appended.
func (s *Store) put(note types.Note, content string) (types.Note, error) {
	if err := os.WriteFile(note.Path, []byte(content), 0o644); err != nil {
		return types.Note{}, fmt.Errorf("writing note content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.index.Entries {
		if existing.ID == note.ID {
			return existing, nil
		}
	}

	note.CreatedAt = time.Now().UTC()
	s.index.Entries = append(s.index.Entries, note)
	if err := s.writeIndexLocked(); err != nil {
		s.index.Entries = s.index.Entries[:len(s.index.Entries)-1]
		return types.Note{}, err
	}
	return note, nil
}

// writeIndexLocked rewrites the index wholesale through a temp file and
// rename, so readers never observe a partial index. Callers hold s.mu.
func (s *Store) writeIndexLocked() error {
	data, err := yaml.Marshal(&s.index)
	if err != nil {
		return fmt.Errorf("encoding notes index: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing index: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp index: %w", closeErr)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, indexFile)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// noteID derives the stable note identifier from the (session, task) pair.
func noteID(sessionID string, taskID int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", sessionID, taskID))
	return hex.EncodeToString(sum[:])[:12]
}

// renderTaskNote lays out the persisted markdown for one completed task.
func renderTaskNote(topic string, item types.TodoItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Task: %d\n", item.ID)
	fmt.Fprintf(&b, "Query: %s\n\n", item.Query)
	b.WriteString(item.Summary)
	b.WriteString("\n")
	if item.SourcesSummary != "" {
		fmt.Fprintf(&b, "\n## Sources\n\n%s\n", item.SourcesSummary)
	}
	return b.String()
}
