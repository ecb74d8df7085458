package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Store manages the write path: it turns searchable projections into chunk
// and vector rows, reusing embeddings by content hash so unchanged text is
// never re-embedded.
//
// Store is safe for concurrent use by multiple goroutines; convergence for
// concurrent syncs of the same content is delegated to the vector upsert,
// which is keyed by hash.
type Store struct {
	queries  Querier
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates a Store.
//
// Example (production):
//
//	store := knowledge.NewStore(postgres.New(pool), embedder, logger)
//
// Example (testing):
//
//	store := knowledge.NewStore(fakeQuerier, mockEmbedder, log.NewNop())
func NewStore(querier Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Sync makes the stored chunks for doc's chunkable match its current
// content and metadata.
//
// The diff is hash-driven: sections whose hash already exists as a lineage
// root are kept (their children and embeddings untouched, only the
// position refreshed), new sections are chunked and embedded, and roots
// whose hash no longer appears are deleted with their children. Syncing
// identical content twice is therefore a cheap no-op on the chunk table
// and performs zero embedding calls.
func (s *Store) Sync(ctx context.Context, doc SearchDoc, agentIDs []int64) error {
	if err := s.queries.UpsertChunkable(ctx, UpsertChunkableParams{
		Chunkable: doc.Identity,
		Title:     doc.Title,
		URL:       doc.URL,
		Container: doc.Container,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("upsert chunkable %s/%d: %w", doc.Identity.Type, doc.Identity.ID, err)
	}

	if err := s.queries.ReplaceChunkableTags(ctx, doc.Identity, doc.Tags); err != nil {
		return fmt.Errorf("replace tags for %s/%d: %w", doc.Identity.Type, doc.Identity.ID, err)
	}

	if err := s.queries.ReplaceChunkableAgents(ctx, doc.Identity, agentIDs); err != nil {
		return fmt.Errorf("replace agents for %s/%d: %w", doc.Identity.Type, doc.Identity.ID, err)
	}

	sections := SplitText(doc.Content)

	existing, err := s.queries.ChunksByChunkable(ctx, doc.Identity)
	if err != nil {
		return fmt.Errorf("load chunks for %s/%d: %w", doc.Identity.Type, doc.Identity.ID, err)
	}

	// Roots indexed by hash. A hash can repeat when a document contains the
	// same section twice, so each stored root is consumed at most once.
	rootsByHash := make(map[string][]Chunk)
	for _, c := range existing {
		if c.ParentID == 0 {
			rootsByHash[c.Hash] = append(rootsByHash[c.Hash], c)
		}
	}

	kept := make(map[int64]struct{})
	var reused, created int

	for pos, sec := range sections {
		if roots := rootsByHash[sec.Hash]; len(roots) > 0 {
			root := roots[0]
			rootsByHash[sec.Hash] = roots[1:]
			kept[root.ID] = struct{}{}
			reused++
			if root.Position != pos {
				if err := s.queries.UpdateChunkPosition(ctx, root.ID, pos); err != nil {
					return fmt.Errorf("move chunk %d: %w", root.ID, err)
				}
			}
			continue
		}
		if err := s.insertSection(ctx, doc.Identity, pos, sec); err != nil {
			return err
		}
		created++
	}

	var stale []int64
	for _, c := range existing {
		if c.ParentID != 0 {
			continue
		}
		if _, ok := kept[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) > 0 {
		if err := s.queries.DeleteChunks(ctx, stale); err != nil {
			return fmt.Errorf("delete stale chunks for %s/%d: %w", doc.Identity.Type, doc.Identity.ID, err)
		}
	}

	s.logger.Debug("synced chunkable",
		"type", doc.Identity.Type,
		"id", doc.Identity.ID,
		"sections", len(sections),
		"reused", reused,
		"created", created,
		"deleted", len(stale))
	return nil
}

// insertSection stores one new section. A short section becomes a single
// embedded root chunk. A long section becomes an unembedded root holding
// the full text plus one embedded child per slice; search matches the
// children and surfaces the root's content.
func (s *Store) insertSection(ctx context.Context, chunkable Identity, pos int, sec Section) error {
	if len(sec.Slices) == 0 {
		vectorID, err := s.ensureVector(ctx, sec.Text, sec.Hash)
		if err != nil {
			return err
		}
		if _, err := s.queries.InsertChunk(ctx, InsertChunkParams{
			Chunkable: chunkable,
			Position:  pos,
			Content:   sec.Text,
			Hash:      sec.Hash,
			VectorID:  vectorID,
		}); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		return nil
	}

	parentID, err := s.queries.InsertChunk(ctx, InsertChunkParams{
		Chunkable: chunkable,
		Position:  pos,
		Content:   sec.Text,
		Hash:      sec.Hash,
	})
	if err != nil {
		return fmt.Errorf("insert parent chunk: %w", err)
	}

	for i, slice := range sec.Slices {
		vectorID, err := s.ensureVector(ctx, slice.Text, slice.Hash)
		if err != nil {
			return err
		}
		if _, err := s.queries.InsertChunk(ctx, InsertChunkParams{
			Chunkable: chunkable,
			ParentID:  parentID,
			Position:  i,
			Content:   slice.Text,
			Hash:      slice.Hash,
			VectorID:  vectorID,
		}); err != nil {
			return fmt.Errorf("insert child chunk: %w", err)
		}
	}
	return nil
}

// ensureVector resolves the vector row for a text, embedding only when no
// row with the same content hash exists yet.
func (s *Store) ensureVector(ctx context.Context, text, hash string) (int64, error) {
	id, err := s.queries.VectorIDByHash(ctx, hash)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("lookup vector %s: %w", hash, err)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("embed chunk %s: %w", hash, err)
	}

	id, err = s.queries.UpsertVector(ctx, UpsertVectorParams{
		Hash:       hash,
		VectorJSON: EncodeVector(vec),
		Embedding:  vec,
	})
	if err != nil {
		return 0, fmt.Errorf("store vector %s: %w", hash, err)
	}
	return id, nil
}

// Delete removes a chunkable and everything hanging off it. Vector rows
// are left in place: they are content-addressed and may be shared with
// other chunkables carrying the same text.
func (s *Store) Delete(ctx context.Context, chunkable Identity) error {
	if err := s.queries.DeleteChunkable(ctx, chunkable); err != nil {
		return fmt.Errorf("delete chunkable %s/%d: %w", chunkable.Type, chunkable.ID, err)
	}
	s.logger.Debug("deleted chunkable", "type", chunkable.Type, "id", chunkable.ID)
	return nil
}

// TagContainer overwrites the tags attached to a category or website.
// Inherited visibility is resolved at query time, so already-synced
// chunkables pick up the change without re-ingestion.
func (s *Store) TagContainer(ctx context.Context, container Identity, tags []string) error {
	if container.Type != TypeCategory && container.Type != TypeWebsite {
		return fmt.Errorf("tag container: %q is not a container type", container.Type)
	}
	if err := s.queries.ReplaceContainerTags(ctx, container, tags); err != nil {
		return fmt.Errorf("replace container tags for %s/%d: %w", container.Type, container.ID, err)
	}
	return nil
}
