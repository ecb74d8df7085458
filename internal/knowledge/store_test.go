package knowledge_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/deskhive/kbase/internal/knowledge"
	"github.com/deskhive/kbase/internal/testutil"
)

func snippetDoc(id int64, body string, tags ...string) knowledge.SearchDoc {
	return knowledge.Project(knowledge.Snippet{ID: id, Title: "snippet", Body: body}, tags, nil)
}

// ============================================================================
// Sync Tests
// ============================================================================

func TestStore_Sync_CreatesChunksAndVectors(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	doc := snippetDoc(1, "How do I cancel my plan?\n\nGo to billing and press cancel.")
	if err := store.Sync(context.Background(), doc, []int64{10}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if db.ChunkCount() != 1 {
		t.Errorf("chunk count = %d, want 1", db.ChunkCount())
	}
	if db.VectorCount() != 1 {
		t.Errorf("vector count = %d, want 1", db.VectorCount())
	}
	if emb.CallCount() != 1 {
		t.Errorf("embed calls = %d, want 1", emb.CallCount())
	}
}

func TestStore_Sync_IdenticalContent_NoReembed(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	doc := snippetDoc(1, "Refunds are processed within five business days.")
	if err := store.Sync(context.Background(), doc, nil); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	chunksBefore := db.ChunkCount()
	callsBefore := emb.CallCount()

	if err := store.Sync(context.Background(), doc, nil); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if emb.CallCount() != callsBefore {
		t.Errorf("re-syncing identical content made %d embed calls", emb.CallCount()-callsBefore)
	}
	if db.ChunkCount() != chunksBefore {
		t.Errorf("chunk count changed on identical re-sync: %d -> %d", chunksBefore, db.ChunkCount())
	}
}

func TestStore_Sync_SharedContent_ReusesVector(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	body := "Our support hours are 9am to 5pm on weekdays."
	if err := store.Sync(context.Background(), snippetDoc(1, body), nil); err != nil {
		t.Fatalf("sync 1 failed: %v", err)
	}
	callsBefore := emb.CallCount()

	// A different chunkable carrying the same text must reuse the stored
	// vector instead of embedding again.
	if err := store.Sync(context.Background(), snippetDoc(2, body), nil); err != nil {
		t.Fatalf("sync 2 failed: %v", err)
	}

	if emb.CallCount() != callsBefore {
		t.Errorf("shared content re-embedded: %d extra calls", emb.CallCount()-callsBefore)
	}
	if db.VectorCount() != 1 {
		t.Errorf("vector count = %d, want 1 shared row", db.VectorCount())
	}
	if db.ChunkCount() != 2 {
		t.Errorf("chunk count = %d, want one per chunkable", db.ChunkCount())
	}
}

func TestStore_Sync_ContentChange_ReplacesStaleChunks(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	ctx := context.Background()
	if err := store.Sync(ctx, snippetDoc(1, "Old answer about shipping."), nil); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := store.Sync(ctx, snippetDoc(1, "New answer about shipping times."), nil); err != nil {
		t.Fatalf("re-sync failed: %v", err)
	}

	chunks, err := db.ChunksByChunkable(ctx, knowledge.Identity{Type: knowledge.TypeSnippet, ID: 1})
	if err != nil {
		t.Fatalf("load chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "New answer about shipping times." {
		t.Errorf("surviving chunk holds stale content: %q", chunks[0].Content)
	}
}

func TestStore_Sync_EmptyContent_DeletesAllChunks(t *testing.T) {
	db := testutil.NewFakeDB()
	store := knowledge.NewStore(db, testutil.NewStubEmbedder(), testutil.DiscardLogger())

	ctx := context.Background()
	if err := store.Sync(ctx, snippetDoc(1, "Some content."), nil); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := store.Sync(ctx, snippetDoc(1, ""), nil); err != nil {
		t.Fatalf("empty re-sync failed: %v", err)
	}

	if db.ChunkCount() != 0 {
		t.Errorf("chunk count = %d after emptying content, want 0", db.ChunkCount())
	}
}

func TestStore_Sync_LongSection_ParentWithEmbeddedChildren(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	ctx := context.Background()
	var b strings.Builder
	for i := 0; i < 70; i++ {
		fmt.Fprintf(&b, "Step %d: check the router and modem status lights. ", i)
	}
	if err := store.Sync(ctx, snippetDoc(1, b.String()), nil); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	chunks, err := db.ChunksByChunkable(ctx, knowledge.Identity{Type: knowledge.TypeSnippet, ID: 1})
	if err != nil {
		t.Fatalf("load chunks: %v", err)
	}

	var roots, children int
	var rootID int64
	for _, c := range chunks {
		if c.ParentID == 0 {
			roots++
			rootID = c.ID
			if c.Searchable() {
				t.Error("sliced section's root must not be embedded")
			}
		} else {
			children++
			if !c.Searchable() {
				t.Errorf("child chunk %d has no vector", c.ID)
			}
		}
	}
	if roots != 1 {
		t.Fatalf("root count = %d, want 1", roots)
	}
	if children < 2 {
		t.Fatalf("child count = %d, want at least 2", children)
	}
	for _, c := range chunks {
		if c.ParentID != 0 && c.ParentID != rootID {
			t.Errorf("child %d points at parent %d, want %d", c.ID, c.ParentID, rootID)
		}
	}
	if emb.CallCount() != children {
		t.Errorf("embed calls = %d, want one per child slice (%d)", emb.CallCount(), children)
	}
}

func TestStore_Sync_EmbedError_Propagates(t *testing.T) {
	db := testutil.NewFakeDB()
	emb := testutil.NewStubEmbedder()
	emb.Err = errors.New("model unavailable")
	store := knowledge.NewStore(db, emb, testutil.DiscardLogger())

	err := store.Sync(context.Background(), snippetDoc(1, "text"), nil)
	if err == nil {
		t.Fatal("sync succeeded despite embedder failure")
	}
	if !errors.Is(err, emb.Err) {
		t.Errorf("error does not wrap the embedder failure: %v", err)
	}
}

func TestStore_Sync_QuerierError_Propagates(t *testing.T) {
	db := testutil.NewFakeDB()
	db.FailWith = errors.New("connection refused")
	store := knowledge.NewStore(db, testutil.NewStubEmbedder(), testutil.DiscardLogger())

	err := store.Sync(context.Background(), snippetDoc(1, "text"), nil)
	if !errors.Is(err, db.FailWith) {
		t.Errorf("error does not wrap the querier failure: %v", err)
	}
}

// ============================================================================
// Delete Tests
// ============================================================================

func TestStore_Delete_KeepsSharedVectors(t *testing.T) {
	db := testutil.NewFakeDB()
	store := knowledge.NewStore(db, testutil.NewStubEmbedder(), testutil.DiscardLogger())

	ctx := context.Background()
	if err := store.Sync(ctx, snippetDoc(1, "Shared text."), nil); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := store.Delete(ctx, knowledge.Identity{Type: knowledge.TypeSnippet, ID: 1}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if db.ChunkCount() != 0 {
		t.Errorf("chunk count = %d after delete, want 0", db.ChunkCount())
	}
	// Vectors are content-addressed and may back other chunkables.
	if db.VectorCount() != 1 {
		t.Errorf("vector count = %d after delete, want 1", db.VectorCount())
	}
}

// ============================================================================
// TagContainer Tests
// ============================================================================

func TestStore_TagContainer(t *testing.T) {
	db := testutil.NewFakeDB()
	store := knowledge.NewStore(db, testutil.NewStubEmbedder(), testutil.DiscardLogger())
	ctx := context.Background()

	category := knowledge.Identity{Type: knowledge.TypeCategory, ID: 3}
	if err := store.TagContainer(ctx, category, []string{"public", "billing"}); err != nil {
		t.Fatalf("tag container failed: %v", err)
	}

	tags, err := db.ContainerTags(ctx, category)
	if err != nil {
		t.Fatalf("read container tags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("container tags = %v, want 2 entries", tags)
	}
}

func TestStore_TagContainer_RejectsNonContainer(t *testing.T) {
	store := knowledge.NewStore(testutil.NewFakeDB(), testutil.NewStubEmbedder(), testutil.DiscardLogger())

	err := store.TagContainer(context.Background(), knowledge.Identity{Type: knowledge.TypeArticle, ID: 1}, []string{"x"})
	if err == nil {
		t.Fatal("tagging an article as a container should fail")
	}
}
