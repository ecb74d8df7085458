// Package cmd provides the CLI commands.
//
// Commands:
//   - serve: HTTP API server (ingest, search, tagging, deletion)
//   - ingest: one-shot batch ingestion from a JSON file
//   - version: build information
//
// All commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskhive/kbase/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "kbase - knowledge retrieval engine",
	Long: `kbase ingests helpdesk content (articles, webpages, documents,
snippets), chunks and embeds it, and serves tenant- and tag-scoped
semantic search over the result.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the process logger before config is loaded, so early
// startup failures are still reported consistently. DEBUG in the
// environment enables debug level.
func initLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: os.Getenv("KBASE_LOG_JSON") == "1"})
}
