// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deep-researcher CLI.
// Implements: prd001-planning through prd008-archive (CLI surface).
// See docs/ARCHITECTURE § Engine Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-researcher/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// envAliases maps config keys to the bare upstream environment variable
// names, usable alongside the DEEP_RESEARCHER_-prefixed forms.
var envAliases = map[string]string{
	"max_web_research_loops": "MAX_WEB_RESEARCH_LOOPS",
	"search_api":             "SEARCH_API",
	"llm_provider":           "LLM_PROVIDER",
	"local_llm":              "LOCAL_LLM",
	"llm_base_url":           "LLM_BASE_URL",
	"llm_api_key":            "LLM_API_KEY",
	"llm_model_id":           "LLM_MODEL_ID",
	"notes_workspace":        "NOTES_WORKSPACE",
	"fetch_full_page":        "FETCH_FULL_PAGE",
	"strip_thinking_tokens":  "STRIP_THINKING_TOKENS",
	"tavily_api_key":         "TAVILY_API_KEY",
	"perplexity_api_key":     "PERPLEXITY_API_KEY",
	"searxng_url":            "SEARXNG_URL",
}

// rootCmd is the base command for the deep-researcher CLI.
var rootCmd = &cobra.Command{
	Use:   "deep-researcher",
	Short: "Automated web research from a single topic",
	Long: `deep-researcher decomposes a research topic into tasks, runs bounded
web search and summarization rounds per task, and assembles a markdown
report. Findings persist as notes; finished runs land in a searchable
archive.

Run a session once with the research subcommand, or start the HTTP
service with serve and drive it through /research and /research/stream.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %s\n", secrets.Summary(s))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./deep-researcher.yaml or ~/.config/deep-researcher/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deep-researcher")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "deep-researcher"))
		}
	}

	viper.SetEnvPrefix("DEEP_RESEARCHER")
	viper.AutomaticEnv()
	for key, alias := range envAliases {
		viper.BindEnv(key, "DEEP_RESEARCHER_"+alias, alias)
	}

	// Booleans that default to on; everything else defaults in ApplyDefaults.
	viper.SetDefault("enable_notes", true)
	viper.SetDefault("archive_enabled", true)
	viper.SetDefault("strip_thinking_tokens", true)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
