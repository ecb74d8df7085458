package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/deskhive/kbase/internal/knowledge"
)

// Store is the slice of the knowledge store the ingestor needs.
type Store interface {
	Sync(ctx context.Context, doc knowledge.SearchDoc, agentIDs []int64) error
}

// TagSource resolves a container's current tags so projections carry the
// inherited set at sync time.
type TagSource interface {
	ContainerTags(ctx context.Context, container knowledge.Identity) ([]string, error)
}

// Report summarizes one ingestion run.
type Report struct {
	Ingested int           `json:"ingested"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"-"`
}

// Ingestor pushes item batches through projection and sync. The limiter
// paces syncs so a bulk re-index does not saturate the embedding provider;
// items are otherwise independent and one failure never aborts the run.
type Ingestor struct {
	store   Store
	tags    TagSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewIngestor creates an ingestor. A nil limiter means no pacing.
func NewIngestor(store Store, tags TagSource, limiter *rate.Limiter, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, tags: tags, limiter: limiter, logger: logger}
}

// Run ingests the batch in order. Invalid items are skipped, sync failures
// are counted, and the context aborts the run between items.
func (ing *Ingestor) Run(ctx context.Context, items []Item) (Report, error) {
	start := time.Now()
	var rep Report

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("ingest aborted at item %d: %w", i, err)
		}
		if ing.limiter != nil {
			if err := ing.limiter.Wait(ctx); err != nil {
				rep.Duration = time.Since(start)
				return rep, fmt.Errorf("ingest aborted at item %d: %w", i, err)
			}
		}

		c, err := item.Chunkable()
		if err != nil {
			rep.Skipped++
			ing.logger.Warn("skipping invalid item", "index", i, "error", err)
			continue
		}

		if err := ing.syncOne(ctx, c, item); err != nil {
			rep.Failed++
			ing.logger.Error("item sync failed",
				"index", i,
				"type", item.ChunkableType,
				"id", item.ChunkableID,
				"error", err)
			continue
		}
		rep.Ingested++
	}

	rep.Duration = time.Since(start)
	ing.logger.Info("ingestion run completed",
		"ingested", rep.Ingested,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"duration", rep.Duration)
	return rep, nil
}

func (ing *Ingestor) syncOne(ctx context.Context, c knowledge.Chunkable, item Item) error {
	var containerTags []string
	if container, ok := c.Container(); ok {
		tags, err := ing.tags.ContainerTags(ctx, container)
		if err != nil {
			return fmt.Errorf("resolve container tags: %w", err)
		}
		containerTags = tags
	}

	doc := knowledge.Project(c, item.Tags, containerTags)
	return ing.store.Sync(ctx, doc, item.AgentIDs)
}
