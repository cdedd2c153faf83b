// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-researcher/internal/archive"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived research runs (list, show, export)",
	Long: `History manages the local SQLite archive of finished research runs.
Use subcommands to list past sessions, inspect a single run, or export.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List archived runs, newest first or by full-text match",
	Long: `List shows archived research sessions. With a query the archive is
searched over topics and reports using FTS5; without one the most
recent sessions are shown.`,
	RunE: runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, _, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Query(context.Background(), archiveOptsFromFlags(cmd, args))
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No archived runs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-36s  %-6s  %s\n",
		"Created", "Session", "Tasks", "Topic")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range runs {
		topic := r.Topic
		if len(topic) > 44 {
			topic = topic[:41] + "..."
		}
		if r.Cancelled {
			topic += " (cancelled)"
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-36s  %-6s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.SessionID,
			fmt.Sprintf("%d/%d", r.Completed, r.Tasks),
			topic)
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the report and task breakdown of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, _, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	sessionID := args[0]
	report, err := store.Report(context.Background(), sessionID)
	if err != nil {
		return err
	}
	tasks, err := store.Tasks(context.Background(), sessionID)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			SessionID string           `json:"session_id"`
			Report    string           `json:"report"`
			Tasks     []types.TodoItem `json:"tasks"`
		}{sessionID, report, tasks})
	}

	fmt.Println(report)
	fmt.Println()

	fmt.Fprintf(os.Stdout, "%-4s  %-10s  %-6s  %-20s  %s\n",
		"Task", "Status", "Rounds", "Reason", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, item := range tasks {
		reason := item.StatusReason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-10s  %-6d  %-20s  %s\n",
			item.ID, item.Status, item.LoopCount, reason, item.Title)
	}
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived runs to YAML or JSON",
	Long: `Export writes archived sessions, their reports, and their task
breakdowns to a single file. Supports the same full-text match as list
for partial exports.`,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, cfg, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := archiveOptsFromFlags(cmd, args)

	out, _ := cmd.Flags().GetString("out")
	switch format {
	case "yaml", "":
		if out == "" {
			out = filepath.Join(cfg.Archive.Dir, "export.yaml")
		}
		if err := store.ExportYAML(context.Background(), opts, out); err != nil {
			return err
		}
	case "json":
		if out == "" {
			out = filepath.Join(cfg.Archive.Dir, "export.json")
		}
		if err := store.ExportJSON(context.Background(), opts, out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	fmt.Printf("Exported to %s\n", out)
	return nil
}

// --- shared helpers ---

func openArchive() (*archive.Store, types.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, types.Config{}, err
	}
	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return nil, types.Config{}, err
	}
	return store, cfg, nil
}

func archiveOptsFromFlags(cmd *cobra.Command, args []string) archive.QueryOptions {
	match, _ := cmd.Flags().GetString("match")
	if match == "" && len(args) > 0 {
		match = strings.Join(args, " ")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	return archive.QueryOptions{Match: match, MaxResults: limit}
}

func init() {
	// List flags.
	historyListCmd.Flags().String("match", "", "full-text search over topics and reports")
	historyListCmd.Flags().Int("limit", 0, "maximum runs to show (0 = use default)")
	historyListCmd.Flags().Bool("json", false, "output as JSON")

	// Show flags.
	historyShowCmd.Flags().Bool("json", false, "output as JSON")

	// Export flags.
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().String("match", "", "full-text search filter for partial export")
	historyExportCmd.Flags().Int("limit", 0, "maximum runs to export (0 = all)")
	historyExportCmd.Flags().String("out", "", "output file (default <archive-dir>/export.<format>)")

	// Wire subcommands.
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
