package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/deskhive/kbase/internal/knowledge"
)

// Queries implements knowledge.Querier and knowledge.SearchQuerier.
//
// The native flag tracks whether the embedding column and pgvector
// operators exist in this deployment's schema. Write queries always store
// vector_json; they additionally populate the typed embedding column only
// when native is set.
type Queries struct {
	pool   *pgxpool.Pool
	native bool
}

// New creates the query layer over an open pool.
func New(pool *pgxpool.Pool, native bool) *Queries {
	return &Queries{pool: pool, native: native}
}

var _ knowledge.Querier = (*Queries)(nil)
var _ knowledge.SearchQuerier = (*Queries)(nil)

// UpsertChunkable registers or refreshes a chunkable record.
func (q *Queries) UpsertChunkable(ctx context.Context, arg knowledge.UpsertChunkableParams) error {
	var containerType *string
	var containerID *int64
	if arg.Container != (knowledge.Identity{}) {
		t := string(arg.Container.Type)
		containerType = &t
		containerID = &arg.Container.ID
	}

	_, err := q.pool.Exec(ctx, `
		INSERT INTO chunkables (chunkable_type, chunkable_id, title, url, container_type, container_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chunkable_type, chunkable_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			container_type = EXCLUDED.container_type,
			container_id = EXCLUDED.container_id,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			synced_at = now()`,
		arg.Chunkable.Type, arg.Chunkable.ID, arg.Title, arg.URL,
		containerType, containerID, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert chunkable: %w", err)
	}
	return nil
}

// ReplaceChunkableTags overwrites the chunkable's tag set in one
// transaction so readers never observe a half-replaced set.
func (q *Queries) ReplaceChunkableTags(ctx context.Context, chunkable knowledge.Identity, tags []string) error {
	return q.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM chunkable_tags WHERE chunkable_type = $1 AND chunkable_id = $2`,
			chunkable.Type, chunkable.ID); err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chunkable_tags (chunkable_type, chunkable_id, tag)
			SELECT $1, $2, t FROM unnest($3::text[]) AS t
			ON CONFLICT DO NOTHING`,
			chunkable.Type, chunkable.ID, tags)
		return err
	})
}

// ReplaceContainerTags overwrites a container's tag set.
func (q *Queries) ReplaceContainerTags(ctx context.Context, container knowledge.Identity, tags []string) error {
	return q.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM container_tags WHERE container_type = $1 AND container_id = $2`,
			container.Type, container.ID); err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO container_tags (container_type, container_id, tag)
			SELECT $1, $2, t FROM unnest($3::text[]) AS t
			ON CONFLICT DO NOTHING`,
			container.Type, container.ID, tags)
		return err
	})
}

// ReplaceChunkableAgents overwrites the tenant associations.
func (q *Queries) ReplaceChunkableAgents(ctx context.Context, chunkable knowledge.Identity, agentIDs []int64) error {
	return q.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM agent_chunkables WHERE chunkable_type = $1 AND chunkable_id = $2`,
			chunkable.Type, chunkable.ID); err != nil {
			return err
		}
		if len(agentIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO agent_chunkables (agent_id, chunkable_type, chunkable_id)
			SELECT a, $2, $3 FROM unnest($1::bigint[]) AS a
			ON CONFLICT DO NOTHING`,
			agentIDs, chunkable.Type, chunkable.ID)
		return err
	})
}

// ContainerTags returns the tags attached to a container, sorted.
func (q *Queries) ContainerTags(ctx context.Context, container knowledge.Identity) ([]string, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT tag FROM container_tags WHERE container_type = $1 AND container_id = $2 ORDER BY tag`,
		container.Type, container.ID)
	if err != nil {
		return nil, fmt.Errorf("list container tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan container tags: %w", err)
	}
	return tags, nil
}

// ChunksByChunkable returns all chunk rows for a chunkable, lineage roots
// first, each level ordered by position.
func (q *Queries) ChunksByChunkable(ctx context.Context, chunkable knowledge.Identity) ([]knowledge.Chunk, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, chunkable_type, chunkable_id, COALESCE(parent_chunk_id, 0),
		       position, content, hash, COALESCE(vector_id, 0), created_at, updated_at
		FROM chunks
		WHERE chunkable_type = $1 AND chunkable_id = $2
		ORDER BY (parent_chunk_id IS NOT NULL), parent_chunk_id, position`,
		chunkable.Type, chunkable.ID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []knowledge.Chunk
	for rows.Next() {
		var c knowledge.Chunk
		if err := rows.Scan(&c.ID, &c.Chunkable.Type, &c.Chunkable.ID, &c.ParentID,
			&c.Position, &c.Content, &c.Hash, &c.VectorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// VectorIDByHash resolves a stored vector by content hash.
func (q *Queries) VectorIDByHash(ctx context.Context, hash string) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx, `SELECT id FROM vectors WHERE hash = $1`, hash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, knowledge.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup vector by hash: %w", err)
	}
	return id, nil
}

// UpsertVector stores an embedding keyed by hash. The conflict arm makes
// the insert idempotent: concurrent upserts of the same hash all converge
// on the first row's id.
func (q *Queries) UpsertVector(ctx context.Context, arg knowledge.UpsertVectorParams) (int64, error) {
	var id int64
	var err error
	if q.native {
		vec := pgvector.NewVector(arg.Embedding)
		err = q.pool.QueryRow(ctx, `
			INSERT INTO vectors (hash, vector_json, embedding)
			VALUES ($1, $2, $3)
			ON CONFLICT (hash) DO UPDATE SET hash = EXCLUDED.hash
			RETURNING id`,
			arg.Hash, arg.VectorJSON, &vec).Scan(&id)
	} else {
		err = q.pool.QueryRow(ctx, `
			INSERT INTO vectors (hash, vector_json)
			VALUES ($1, $2)
			ON CONFLICT (hash) DO UPDATE SET hash = EXCLUDED.hash
			RETURNING id`,
			arg.Hash, arg.VectorJSON).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert vector: %w", err)
	}
	return id, nil
}

// InsertChunk creates a chunk row and returns its id.
func (q *Queries) InsertChunk(ctx context.Context, arg knowledge.InsertChunkParams) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx, `
		INSERT INTO chunks (chunkable_type, chunkable_id, parent_chunk_id, position, content, hash, vector_id)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, NULLIF($7, 0))
		RETURNING id`,
		arg.Chunkable.Type, arg.Chunkable.ID, arg.ParentID, arg.Position,
		arg.Content, arg.Hash, arg.VectorID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert chunk: %w", err)
	}
	return id, nil
}

// UpdateChunkPosition moves a surviving chunk to a new position.
func (q *Queries) UpdateChunkPosition(ctx context.Context, chunkID int64, position int) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE chunks SET position = $2, updated_at = now() WHERE id = $1`,
		chunkID, position)
	if err != nil {
		return fmt.Errorf("update chunk position: %w", err)
	}
	return nil
}

// DeleteChunks removes chunk rows; children follow through the parent
// foreign key cascade.
func (q *Queries) DeleteChunks(ctx context.Context, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := q.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, chunkIDs)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// DeleteChunkable removes the chunkable row; chunks, tag rows, and tenant
// rows follow through cascades. Vector rows stay — they are shared by hash.
func (q *Queries) DeleteChunkable(ctx context.Context, chunkable knowledge.Identity) error {
	_, err := q.pool.Exec(ctx,
		`DELETE FROM chunkables WHERE chunkable_type = $1 AND chunkable_id = $2`,
		chunkable.Type, chunkable.ID)
	if err != nil {
		return fmt.Errorf("delete chunkable: %w", err)
	}
	return nil
}

func (q *Queries) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
