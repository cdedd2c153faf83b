// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-researcher/pkg/types"
)

// exportLimit bounds how many runs a single export includes.
const exportLimit = 10000

// ExportEntry is one archived run with its full report and task rows.
type ExportEntry struct {
	SessionID string           `json:"session_id" yaml:"session_id"`
	Topic     string           `json:"topic" yaml:"topic"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Cancelled bool             `json:"cancelled" yaml:"cancelled"`
	Report    string           `json:"report,omitempty" yaml:"report,omitempty"`
	Tasks     []types.TodoItem `json:"tasks" yaml:"tasks"`
}

// ExportYAML writes matching runs to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions, path string) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}

// ExportJSON writes matching runs to path as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions, path string) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	runs, err := s.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, 0, len(runs))
	for _, run := range runs {
		report, err := s.Report(ctx, run.SessionID)
		if err != nil {
			return nil, err
		}
		tasks, err := s.Tasks(ctx, run.SessionID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ExportEntry{
			SessionID: run.SessionID,
			Topic:     run.Topic,
			CreatedAt: run.CreatedAt,
			Cancelled: run.Cancelled,
			Report:    report,
			Tasks:     tasks,
		})
	}
	return entries, nil
}
