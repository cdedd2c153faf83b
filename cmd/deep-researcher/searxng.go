package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-researcher/internal/container"
)

var searxngCmd = &cobra.Command{
	Use:   "searxng",
	Short: "Manage the local SearXNG container (up, status, down)",
	Long: `Searxng controls a local SearXNG metasearch container using Docker or
Podman, whichever is installed. The published port is derived from the
searxng_url setting so the search backend finds the instance.`,
}

var searxngUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the SearXNG container",
	RunE: func(cmd *cobra.Command, args []string) error {
		sx, err := openSearxng()
		if err != nil {
			return err
		}
		return sx.Up(os.Stdout)
	},
}

var searxngStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the SearXNG container is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		sx, err := openSearxng()
		if err != nil {
			return err
		}
		st := sx.Status()
		if st.Running {
			fmt.Printf("searxng running (%s) at %s\n", st.Runtime, st.URL)
		} else {
			fmt.Println("searxng stopped")
		}
		return nil
	},
}

var searxngDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the SearXNG container",
	RunE: func(cmd *cobra.Command, args []string) error {
		sx, err := openSearxng()
		if err != nil {
			return err
		}
		return sx.Down(os.Stdout)
	},
}

func openSearxng() (*container.Searxng, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}
	return container.NewSearxng(rt, searxngPort(cfg.Search.SearxngURL)), nil
}

// searxngPort extracts the host port from the configured SearXNG URL so
// the container publishes where the search backend expects it.
func searxngPort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return container.DefaultSearxngPort
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 {
		return container.DefaultSearxngPort
	}
	return port
}

func init() {
	searxngCmd.AddCommand(searxngUpCmd)
	searxngCmd.AddCommand(searxngStatusCmd)
	searxngCmd.AddCommand(searxngDownCmd)
	rootCmd.AddCommand(searxngCmd)
}
