package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// ScanBackend is the fallback retrieval strategy for databases without the
// pgvector extension: it pages embedded chunks out of the database in
// batches and computes cosine similarity in process.
//
// The scan is bounded by scanCandidateLimit; beyond that the backend stops
// rather than degrade into an unbounded table walk. Deployments whose
// corpus outgrows the cap should switch to the pgvector backend.
type ScanBackend struct {
	queries SearchQuerier
	logger  *slog.Logger
}

// NewScanBackend creates the brute-force backend.
func NewScanBackend(queries SearchQuerier, logger *slog.Logger) *ScanBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanBackend{queries: queries, logger: logger}
}

type scanCandidate struct {
	id       int64
	parentID int64
	score    float64
}

// Search walks candidates batch by batch, scoring each against the query
// vector. A malformed stored vector is logged and skipped, never fatal —
// one broken row must not take down search.
//
// Ranking happens before lineage dedup: after the stable sort the first
// candidate seen per lineage is its best-scoring one, so dedup keeps the
// highest score per parent.
func (b *ScanBackend) Search(ctx context.Context, vector []float32, limit int32, filter Filter) ([]SearchHit, error) {
	var (
		candidates []scanCandidate
		afterID    int64
		scanned    int
		skipped    int
	)

	for scanned < scanCandidateLimit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := b.queries.ListEmbedded(ctx, ListEmbeddedParams{
			AgentID: filter.AgentID,
			Scope:   filter.Scope,
			AfterID: afterID,
			Limit:   scanBatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list embedded chunks: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, c := range batch {
			scanned++
			afterID = c.ID

			stored, err := DecodeVector(c.VectorJSON)
			if err != nil {
				skipped++
				b.logger.Warn("skipping chunk with malformed vector", "chunk_id", c.ID, "error", err)
				continue
			}
			score, ok := CosineSimilarity(vector, stored)
			if !ok {
				skipped++
				b.logger.Warn("skipping chunk with incomparable vector", "chunk_id", c.ID, "dimension", len(stored))
				continue
			}
			candidates = append(candidates, scanCandidate{id: c.ID, parentID: c.ParentID, score: score})
		}

		if len(batch) < scanBatchSize {
			break
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[int64]struct{})
	hits := make([]SearchHit, 0, limit)
	for _, c := range candidates {
		if c.score <= scanScoreThreshold {
			break
		}
		lineage := c.id
		if c.parentID != 0 {
			lineage = c.parentID
		}
		if _, ok := seen[lineage]; ok {
			continue
		}
		seen[lineage] = struct{}{}
		hits = append(hits, SearchHit{ID: c.id, ParentID: c.parentID, Score: c.score})
		if int32(len(hits)) >= limit {
			break
		}
	}

	b.logger.Debug("scan search", "scanned", scanned, "skipped", skipped, "hits", len(hits))
	return hits, nil
}
