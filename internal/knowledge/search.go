package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Backend is one retrieval strategy: given a query vector and a filter, it
// returns raw hits already deduplicated by lineage and thresholded to the
// strategy's own score floor. The engine never sees strategy internals.
type Backend interface {
	Search(ctx context.Context, vector []float32, limit int32, filter Filter) ([]SearchHit, error)
}

// Filter is the visibility restriction applied inside a backend.
type Filter struct {
	// AgentID restricts to chunkables owned by the tenant. 0 = all.
	AgentID int64

	// Scope restricts to the given identities. nil means unrestricted;
	// an empty non-nil slice matches nothing.
	Scope []Identity
}

// Engine orchestrates search: it resolves the tag scope, delegates to the
// configured backend, and assembles ranked results. Both backends go
// through the same resolution and assembly, which is what keeps them
// interchangeable.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	backend Backend
	queries SearchQuerier
	logger  *slog.Logger
	timeout time.Duration
}

// NewEngine creates a search engine on top of the given backend.
func NewEngine(backend Backend, queries SearchQuerier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend: backend,
		queries: queries,
		logger:  logger,
		timeout: defaultSearchTimeout,
	}
}

// Search runs one query and returns ranked results, best score first.
//
// A tag that exists but covers no chunkables yields an empty result set,
// not an error. An out-of-range limit is normalized, never rejected.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("search: query vector is required")
	}
	if len(q.Vector) != VectorDimension {
		return nil, fmt.Errorf("search: query vector has dimension %d, want %d", len(q.Vector), VectorDimension)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	filter := Filter{AgentID: q.AgentID}
	if q.Tag != "" {
		scope, err := e.queries.TagScope(ctx, q.Tag)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", q.Tag, err)
		}
		if len(scope) == 0 {
			return []Result{}, nil
		}
		filter.Scope = scope.Identities()
	}

	hits, err := e.backend.Search(ctx, q.Vector, limit, filter)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout after %s: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("search backend: %w", err)
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	return e.assemble(ctx, hits)
}

// assemble turns raw hits into presentable results. Each hit is resolved
// to its lineage representative (the parent when the matched chunk was a
// slice), loaded with its chunkable's display payload, scored with the
// hit's score, and the whole set re-sorted since parent resolution can
// collapse ordering.
func (e *Engine) assemble(ctx context.Context, hits []SearchHit) ([]Result, error) {
	ids := make([]int64, 0, len(hits))
	seen := make(map[int64]struct{}, len(hits))
	for _, h := range hits {
		id := h.ID
		if h.ParentID != 0 {
			id = h.ParentID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	chunks, err := e.queries.ChunksWithSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load result chunks: %w", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		score, ok := scoreFor(hits, c.ID)
		if !ok {
			// A concurrent delete can race the assembly; surface the row
			// with a zero score rather than dropping the response.
			e.logger.Warn("no backend score for assembled chunk", "chunk_id", c.ID)
		}
		results = append(results, Result{
			ChunkID:   c.ID,
			Chunkable: c.Chunkable,
			Summary:   c.Summary,
			Content:   c.Content,
			Score:     score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// scoreFor finds the hit that produced the chunk with the given id, which
// may have matched directly or through one of its children.
func scoreFor(hits []SearchHit, chunkID int64) (float64, bool) {
	for _, h := range hits {
		if h.ID == chunkID || h.ParentID == chunkID {
			return h.Score, true
		}
	}
	return 0, false
}
