package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// that treat absence as a normal condition (hash lookups, deletes of
// already-gone rows) match on it with errors.Is.
var ErrNotFound = errors.New("knowledge: not found")

// UpsertChunkableParams registers or refreshes one chunkable record along
// with its projected metadata.
type UpsertChunkableParams struct {
	Chunkable Identity
	Title     string
	URL       string
	Container Identity // zero value when the chunkable has no container
	CreatedAt int64    // epoch seconds, 0 when unknown
	UpdatedAt int64
}

// InsertChunkParams creates one chunk row. ParentID 0 means the chunk is
// its own lineage root; VectorID 0 means the chunk carries no embedding
// and stays invisible to search.
type InsertChunkParams struct {
	Chunkable Identity
	ParentID  int64
	Position  int
	Content   string
	Hash      string
	VectorID  int64
}

// UpsertVectorParams stores one embedding keyed by content hash. Concurrent
// upserts of the same hash must converge on a single row.
type UpsertVectorParams struct {
	Hash       string
	VectorJSON string
	Embedding  []float32
}

// SearchEmbeddedParams drives the native vector search path.
type SearchEmbeddedParams struct {
	Vector   []float32
	Limit    int32
	MinScore float64
	AgentID  int64      // 0 = no tenant restriction
	Scope    []Identity // nil = no tag restriction; empty non-nil = match nothing
}

// SearchHit is one raw backend match. ParentID is 0 when the matched chunk
// is its own lineage root.
type SearchHit struct {
	ID       int64
	ParentID int64
	Score    float64
}

// ListEmbeddedParams pages through embedded chunks for the scan backend.
// AfterID is keyset pagination on chunk id.
type ListEmbeddedParams struct {
	AgentID int64
	Scope   []Identity
	AfterID int64
	Limit   int32
}

// EmbeddedChunk is one scan candidate: the chunk's lineage info plus the
// stored vector JSON it will be compared through.
type EmbeddedChunk struct {
	ID         int64
	ParentID   int64
	VectorJSON string
}

// AssembledChunk is a chunk joined with its chunkable's display payload,
// used to turn backend hits into presentable results in one round trip.
type AssembledChunk struct {
	ID        int64
	ParentID  int64
	Chunkable Identity
	Content   string
	Summary   Summary
}

// Querier is the write-path persistence boundary, consumed by Store.
// Interfaces live with the consumer; internal/postgres provides the pgx
// implementation and internal/testutil the in-memory fake.
type Querier interface {
	// UpsertChunkable registers or refreshes a chunkable record.
	UpsertChunkable(ctx context.Context, arg UpsertChunkableParams) error

	// ReplaceChunkableTags overwrites the chunkable's projected tag set.
	ReplaceChunkableTags(ctx context.Context, chunkable Identity, tags []string) error

	// ReplaceContainerTags overwrites the tags attached to a container.
	ReplaceContainerTags(ctx context.Context, container Identity, tags []string) error

	// ReplaceChunkableAgents overwrites the tenant associations.
	ReplaceChunkableAgents(ctx context.Context, chunkable Identity, agentIDs []int64) error

	// ContainerTags returns the tags currently attached to a container.
	ContainerTags(ctx context.Context, container Identity) ([]string, error)

	// ChunksByChunkable returns all chunk rows for a chunkable, roots
	// before children, ordered by position.
	ChunksByChunkable(ctx context.Context, chunkable Identity) ([]Chunk, error)

	// VectorIDByHash resolves a stored vector by content hash.
	// Returns ErrNotFound when no vector with that hash exists.
	VectorIDByHash(ctx context.Context, hash string) (int64, error)

	// UpsertVector stores an embedding and returns the vector row id.
	// Re-upserting an existing hash returns the existing id.
	UpsertVector(ctx context.Context, arg UpsertVectorParams) (int64, error)

	// InsertChunk creates a chunk row and returns its id.
	InsertChunk(ctx context.Context, arg InsertChunkParams) (int64, error)

	// UpdateChunkPosition moves a surviving chunk to a new position.
	UpdateChunkPosition(ctx context.Context, chunkID int64, position int) error

	// DeleteChunks removes the given chunk rows and their children.
	DeleteChunks(ctx context.Context, chunkIDs []int64) error

	// DeleteChunkable removes a chunkable with all its chunks, tag rows,
	// and tenant rows. Vector rows stay; they are shared by hash.
	DeleteChunkable(ctx context.Context, chunkable Identity) error
}

// SearchQuerier is the read-path persistence boundary, consumed by the
// search engine and its backends.
type SearchQuerier interface {
	// TagScope resolves a tag to the identities it makes visible:
	// directly tagged chunkables plus chunkables inheriting the tag from
	// their category or website.
	TagScope(ctx context.Context, tag string) (IdentitySet, error)

	// SearchEmbedded runs native vector search over embedded chunks,
	// deduplicated by lineage, best score per lineage.
	SearchEmbedded(ctx context.Context, arg SearchEmbeddedParams) ([]SearchHit, error)

	// ListEmbedded pages through embedded chunks matching the filter,
	// ordered by chunk id, for brute-force scanning.
	ListEmbedded(ctx context.Context, arg ListEmbeddedParams) ([]EmbeddedChunk, error)

	// ChunksWithSummaries loads chunks joined with their chunkable's
	// display payload, in the order of the given ids.
	ChunksWithSummaries(ctx context.Context, chunkIDs []int64) ([]AssembledChunk, error)
}
