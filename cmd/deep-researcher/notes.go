package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-researcher/internal/notes"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List saved research notes",
	Long: `Notes lists the durable notes written during past research runs,
one per completed task plus one per final report.`,
	RunE: runNotes,
}

func init() {
	notesCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(notesCmd)
}

func runNotes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := notes.Open(cfg.Notes.Workspace)
	if err != nil {
		return err
	}

	entries := store.List()

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No notes saved.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-14s  %-8s  %-4s  %-20s  %s\n",
		"ID", "Kind", "Task", "Created", "Topic")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, n := range entries {
		topic := n.Topic
		if len(topic) > 40 {
			topic = topic[:37] + "..."
		}
		task := "-"
		if n.Kind == types.NoteTask {
			task = fmt.Sprintf("%d", n.SourceTaskID)
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-8s  %-4s  %-20s  %s\n",
			n.ID, n.Kind, task, n.CreatedAt.Local().Format("2006-01-02 15:04"), topic)
	}

	fmt.Fprintf(os.Stdout, "\n%d notes in %s\n", len(entries), store.Dir())
	return nil
}
