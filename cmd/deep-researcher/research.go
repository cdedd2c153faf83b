// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-researcher/internal/orchestrator"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [topic...]",
	Short: "Run one research session from the command line",
	Long: `Research plans tasks for the topic, runs bounded search and summarize
rounds per task, prints live progress to stderr, and writes the final
markdown report to stdout.

Ctrl-C cancels cooperatively: in-flight calls finish, remaining tasks are
skipped, and a partial report covering the completed tasks still prints.`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("search", "", "override the search backend: duckduckgo, tavily, perplexity, searxng")
	researchCmd.Flags().Int("max-loops", 0, "override max search/summarize rounds per task")
	researchCmd.Flags().Bool("json", false, "print the full response as JSON instead of the report")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a research topic")
	}
	topic := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if maxLoops, _ := cmd.Flags().GetInt("max-loops"); maxLoops > 0 {
		cfg.Orchestrator.MaxWebResearchLoops = maxLoops
	}
	searchOverride, _ := cmd.Flags().GetString("search")
	api := types.SearchAPI(searchOverride)
	if api != "" && !types.ValidSearchAPI(api) {
		return fmt.Errorf("unknown search backend %q", api)
	}

	deps, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	engine, err := buildEngine(cfg, deps, api, os.Stderr)
	if err != nil {
		return err
	}

	session := orchestrator.NewSession(topic)

	// First Ctrl-C requests cooperative cancellation; a second one takes
	// the default path and kills the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "cancelling: in-flight calls will finish, remaining tasks will be skipped")
		session.Cancel()
		signal.Stop(sigCh)
	}()

	queue := orchestrator.NewEventQueue(cfg.Orchestrator.EventBuffer)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderProgress(os.Stderr, queue.Events())
	}()

	resp, err := engine.Run(cmd.Context(), session, queue)
	queue.Close()
	<-renderDone
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.ReportMarkdown)
	if resp.Cancelled {
		fmt.Fprintln(os.Stderr, "research cancelled; the report covers completed tasks only")
	}
	return nil
}

// renderProgress prints one status line per event.
func renderProgress(w io.Writer, events <-chan types.Event) {
	for ev := range events {
		switch ev.Type {
		case types.EventResearchPlanned:
			fmt.Fprintf(w, "planned %d tasks:\n", len(ev.Items))
			for _, item := range ev.Items {
				fmt.Fprintf(w, "  %d. %s\n", item.ID, item.Title)
			}
		case types.EventTaskStarted:
			fmt.Fprintf(w, "task %d: %s\n", ev.Task.ID, ev.Task.Title)
		case types.EventTaskProgress:
			if frag := firstLine(ev.Fragment); frag != "" {
				fmt.Fprintf(w, "task %d: round %d: %s\n", ev.Task.ID, ev.Round, frag)
			} else {
				fmt.Fprintf(w, "task %d: round %d: no findings yet\n", ev.Task.ID, ev.Round)
			}
		case types.EventTaskCompleted:
			if ev.Task.StatusReason != "" {
				fmt.Fprintf(w, "task %d: %s (%s)\n", ev.Task.ID, ev.Task.Status, ev.Task.StatusReason)
			} else {
				fmt.Fprintf(w, "task %d: %s\n", ev.Task.ID, ev.Task.Status)
			}
		case types.EventResearchCompleted:
			fmt.Fprintln(w, "research complete")
		case types.EventResearchCancelled:
			fmt.Fprintln(w, "research cancelled")
		}
	}
}

// firstLine returns the first line of s, truncated for terminal display.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}
