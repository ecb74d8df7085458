package knowledge

import (
	"context"
	"fmt"
	"log/slog"
)

// PgvectorBackend is the native retrieval strategy: similarity, filtering,
// lineage dedup, and ranking all execute inside Postgres against the HNSW
// index. This is the production default — the scan backend exists for
// deployments where the pgvector extension cannot be installed.
type PgvectorBackend struct {
	queries SearchQuerier
	logger  *slog.Logger
}

// NewPgvectorBackend creates the native backend.
func NewPgvectorBackend(queries SearchQuerier, logger *slog.Logger) *PgvectorBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorBackend{queries: queries, logger: logger}
}

// Search delegates the full query to the database. The native path uses a
// stricter score floor than the scan path; the index trades a little
// recall for latency, so low-confidence matches are not worth surfacing.
func (b *PgvectorBackend) Search(ctx context.Context, vector []float32, limit int32, filter Filter) ([]SearchHit, error) {
	hits, err := b.queries.SearchEmbedded(ctx, SearchEmbeddedParams{
		Vector:   vector,
		Limit:    limit,
		MinScore: nativeScoreThreshold,
		AgentID:  filter.AgentID,
		Scope:    filter.Scope,
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	b.logger.Debug("pgvector search", "hits", len(hits), "limit", limit)
	return hits, nil
}
