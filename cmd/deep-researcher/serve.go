package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-researcher/internal/server"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research HTTP service",
	Long: `Serve exposes the research engine over HTTP.

Endpoints:
  GET  /health                         liveness probe
  POST /research                       run research, respond with the final report
  POST /research/stream                run research, stream progress events over SSE
  POST /research/{session_id}/cancel   request cancellation of a running session

The process shuts down cleanly on SIGINT or SIGTERM, letting in-flight
requests finish.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	deps, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	build := func(api types.SearchAPI) (server.Runner, error) {
		eng, err := buildEngine(cfg, deps, api, os.Stderr)
		if err != nil {
			return nil, err
		}
		return eng, nil
	}

	srv := server.New(build, os.Stderr)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "listening on %s\n", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
