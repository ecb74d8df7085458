package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/deskhive/kbase/internal/knowledge"
)

// TagScope resolves a tag to every chunkable it makes visible. The UNION
// covers the two visibility sources: chunkables tagged directly, and
// chunkables whose container (category or website) carries the tag.
// Resolving at query time means tagging a container after its content was
// ingested still takes effect immediately.
func (q *Queries) TagScope(ctx context.Context, tag string) (knowledge.IdentitySet, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT chunkable_type, chunkable_id
		FROM chunkable_tags
		WHERE tag = $1
		UNION
		SELECT c.chunkable_type, c.chunkable_id
		FROM chunkables c
		JOIN container_tags ct
		    ON ct.container_type = c.container_type AND ct.container_id = c.container_id
		WHERE ct.tag = $1`,
		tag)
	if err != nil {
		return nil, fmt.Errorf("resolve tag scope: %w", err)
	}
	defer rows.Close()

	scope := knowledge.NewIdentitySet()
	for rows.Next() {
		var id knowledge.Identity
		if err := rows.Scan(&id.Type, &id.ID); err != nil {
			return nil, fmt.Errorf("scan tag scope row: %w", err)
		}
		scope.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag scope: %w", err)
	}
	return scope, nil
}

// SearchEmbedded runs the native similarity query. DISTINCT ON the lineage
// root keeps only the best-scoring chunk per lineage, so a long section
// whose slices all match still produces a single hit.
func (q *Queries) SearchEmbedded(ctx context.Context, arg knowledge.SearchEmbeddedParams) ([]knowledge.SearchHit, error) {
	vec := pgvector.NewVector(arg.Vector)
	scoped, types, ids := scopeArrays(arg.Scope)

	rows, err := q.pool.Query(ctx, `
		SELECT id, parent_chunk_id, score
		FROM (
		    SELECT DISTINCT ON (COALESCE(ch.parent_chunk_id, ch.id))
		           ch.id,
		           COALESCE(ch.parent_chunk_id, 0) AS parent_chunk_id,
		           1 - (v.embedding <=> $1) AS score
		    FROM chunks ch
		    JOIN vectors v ON v.id = ch.vector_id
		    WHERE v.embedding IS NOT NULL
		      AND ($2::bigint = 0 OR EXISTS (
		          SELECT 1 FROM agent_chunkables ac
		          WHERE ac.agent_id = $2
		            AND ac.chunkable_type = ch.chunkable_type
		            AND ac.chunkable_id = ch.chunkable_id))
		      AND (NOT $3::boolean OR (ch.chunkable_type, ch.chunkable_id) IN (
		          SELECT t, i FROM unnest($4::text[], $5::bigint[]) AS s(t, i)))
		    ORDER BY COALESCE(ch.parent_chunk_id, ch.id), v.embedding <=> $1
		) best
		WHERE score > $6
		ORDER BY score DESC
		LIMIT $7`,
		&vec, arg.AgentID, scoped, types, ids, arg.MinScore, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("search embedded chunks: %w", err)
	}
	defer rows.Close()

	var hits []knowledge.SearchHit
	for rows.Next() {
		var h knowledge.SearchHit
		if err := rows.Scan(&h.ID, &h.ParentID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}

// ListEmbedded pages embedded chunks by keyset on chunk id for the scan
// backend. Only vector_json is read, so this works without the pgvector
// extension.
func (q *Queries) ListEmbedded(ctx context.Context, arg knowledge.ListEmbeddedParams) ([]knowledge.EmbeddedChunk, error) {
	scoped, types, ids := scopeArrays(arg.Scope)

	rows, err := q.pool.Query(ctx, `
		SELECT ch.id, COALESCE(ch.parent_chunk_id, 0), v.vector_json
		FROM chunks ch
		JOIN vectors v ON v.id = ch.vector_id
		WHERE ch.id > $1
		  AND ($2::bigint = 0 OR EXISTS (
		      SELECT 1 FROM agent_chunkables ac
		      WHERE ac.agent_id = $2
		        AND ac.chunkable_type = ch.chunkable_type
		        AND ac.chunkable_id = ch.chunkable_id))
		  AND (NOT $3::boolean OR (ch.chunkable_type, ch.chunkable_id) IN (
		      SELECT t, i FROM unnest($4::text[], $5::bigint[]) AS s(t, i)))
		ORDER BY ch.id
		LIMIT $6`,
		arg.AfterID, arg.AgentID, scoped, types, ids, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []knowledge.EmbeddedChunk
	for rows.Next() {
		var c knowledge.EmbeddedChunk
		if err := rows.Scan(&c.ID, &c.ParentID, &c.VectorJSON); err != nil {
			return nil, fmt.Errorf("scan embedded chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded chunks: %w", err)
	}
	return chunks, nil
}

// ChunksWithSummaries loads chunks joined with their chunkable's display
// payload, preserving the order of the given ids.
func (q *Queries) ChunksWithSummaries(ctx context.Context, chunkIDs []int64) ([]knowledge.AssembledChunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := q.pool.Query(ctx, `
		SELECT ch.id, COALESCE(ch.parent_chunk_id, 0),
		       ch.chunkable_type, ch.chunkable_id, ch.content,
		       cb.title, cb.url
		FROM unnest($1::bigint[]) WITH ORDINALITY AS req(id, ord)
		JOIN chunks ch ON ch.id = req.id
		JOIN chunkables cb
		    ON cb.chunkable_type = ch.chunkable_type AND cb.chunkable_id = ch.chunkable_id
		ORDER BY req.ord`,
		chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("load chunks with summaries: %w", err)
	}
	defer rows.Close()

	var chunks []knowledge.AssembledChunk
	for rows.Next() {
		var c knowledge.AssembledChunk
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Chunkable.Type, &c.Chunkable.ID,
			&c.Content, &c.Summary.Title, &c.Summary.URL); err != nil {
			return nil, fmt.Errorf("scan assembled chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assembled chunks: %w", err)
	}
	return chunks, nil
}

// scopeArrays flattens an identity filter into parallel arrays for unnest.
// The boolean distinguishes "no restriction" (nil) from "match nothing"
// (empty non-nil).
func scopeArrays(scope []knowledge.Identity) (bool, []string, []int64) {
	if scope == nil {
		return false, nil, nil
	}
	types := make([]string, len(scope))
	ids := make([]int64, len(scope))
	for i, s := range scope {
		types[i] = string(s.Type)
		ids[i] = s.ID
	}
	return true, types, ids
}
