package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deskhive/kbase/internal/app"
	"github.com/deskhive/kbase/internal/config"
	"github.com/deskhive/kbase/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a batch of content items from a JSON file",
	Long: `Reads a JSON array of content items and synchronizes each into the
knowledge base: chunking, embedding (reusing embeddings for unchanged
text), tag and tenant bookkeeping.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's CLI argument
	if err != nil {
		return fmt.Errorf("opening items file: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := ingest.DecodeItems(f)
	if err != nil {
		return fmt.Errorf("reading items: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("no items in %s", path)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	report, err := a.Ingestor.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}

	fmt.Printf("Ingested: %d  Skipped: %d  Failed: %d  (%s)\n",
		report.Ingested, report.Skipped, report.Failed, report.Duration.Round(0))
	if report.Failed > 0 {
		return fmt.Errorf("%d items failed", report.Failed)
	}
	return nil
}
