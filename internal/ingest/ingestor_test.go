package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/deskhive/kbase/internal/knowledge"
	"github.com/deskhive/kbase/internal/testutil"
)

type mockStore struct {
	docs    []knowledge.SearchDoc
	agents  [][]int64
	failFor map[knowledge.Identity]error
}

func (m *mockStore) Sync(_ context.Context, doc knowledge.SearchDoc, agentIDs []int64) error {
	if err := m.failFor[doc.Identity]; err != nil {
		return err
	}
	m.docs = append(m.docs, doc)
	m.agents = append(m.agents, agentIDs)
	return nil
}

type mockTagSource struct {
	tags  map[knowledge.Identity][]string
	err   error
	calls int
}

func (m *mockTagSource) ContainerTags(_ context.Context, container knowledge.Identity) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.tags[container], nil
}

func TestIngestor_Run(t *testing.T) {
	store := &mockStore{}
	tags := &mockTagSource{tags: map[knowledge.Identity][]string{
		{Type: knowledge.TypeCategory, ID: 5}: {"public"},
	}}
	ing := NewIngestor(store, tags, nil, testutil.DiscardLogger())

	items := []Item{
		{ChunkableType: "article", ChunkableID: 1, Title: "A", Text: "body", ContainerID: 5, Tags: []string{"faq"}, AgentIDs: []int64{7}},
		{ChunkableType: "snippet", ChunkableID: 2, Text: "short"},
	}

	rep, err := ing.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if rep.Ingested != 2 || rep.Skipped != 0 || rep.Failed != 0 {
		t.Errorf("report = %+v, want 2 ingested", rep)
	}
	if len(store.docs) != 2 {
		t.Fatalf("store received %d docs, want 2", len(store.docs))
	}

	// The article's projection carries its own tag plus the inherited one.
	doc := store.docs[0]
	if len(doc.Tags) != 2 {
		t.Errorf("article tags = %v, want own + inherited", doc.Tags)
	}
	if len(store.agents[0]) != 1 || store.agents[0][0] != 7 {
		t.Errorf("agent ids = %v, want [7]", store.agents[0])
	}

	// The snippet has no container; its tags must not be resolved.
	if tags.calls != 1 {
		t.Errorf("container tag lookups = %d, want 1", tags.calls)
	}
}

func TestIngestor_Run_InvalidItemSkipped(t *testing.T) {
	store := &mockStore{}
	ing := NewIngestor(store, &mockTagSource{}, nil, testutil.DiscardLogger())

	items := []Item{
		{ChunkableType: "video", ChunkableID: 1, Text: "x"},
		{ChunkableType: "snippet", ChunkableID: 2, Text: "kept"},
	}

	rep, err := ing.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Skipped != 1 || rep.Ingested != 1 {
		t.Errorf("report = %+v, want 1 skipped and 1 ingested", rep)
	}
}

func TestIngestor_Run_SyncFailureDoesNotAbort(t *testing.T) {
	bad := knowledge.Identity{Type: knowledge.TypeSnippet, ID: 1}
	store := &mockStore{failFor: map[knowledge.Identity]error{bad: errors.New("db down")}}
	ing := NewIngestor(store, &mockTagSource{}, nil, testutil.DiscardLogger())

	items := []Item{
		{ChunkableType: "snippet", ChunkableID: 1, Text: "fails"},
		{ChunkableType: "snippet", ChunkableID: 2, Text: "succeeds"},
	}

	rep, err := ing.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Failed != 1 || rep.Ingested != 1 {
		t.Errorf("report = %+v, want 1 failed and 1 ingested", rep)
	}
}

func TestIngestor_Run_TagResolutionFailureCountsFailed(t *testing.T) {
	store := &mockStore{}
	tags := &mockTagSource{err: errors.New("lookup failed")}
	ing := NewIngestor(store, tags, nil, testutil.DiscardLogger())

	items := []Item{{ChunkableType: "article", ChunkableID: 1, Text: "x", ContainerID: 3}}

	rep, err := ing.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Failed != 1 {
		t.Errorf("report = %+v, want the item counted as failed", rep)
	}
}

func TestIngestor_Run_ContextCancelAborts(t *testing.T) {
	store := &mockStore{}
	ing := NewIngestor(store, &mockTagSource{}, nil, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.Run(ctx, []Item{{ChunkableType: "snippet", ChunkableID: 1, Text: "x"}})
	if err == nil {
		t.Error("run with a canceled context should fail")
	}
	if len(store.docs) != 0 {
		t.Errorf("store received %d docs after cancel, want 0", len(store.docs))
	}
}

func TestIngestor_Run_RateLimiterPaces(t *testing.T) {
	store := &mockStore{}
	// 100/s with burst 1: the second item must wait roughly 10ms.
	limiter := rate.NewLimiter(rate.Limit(100), 1)
	ing := NewIngestor(store, &mockTagSource{}, limiter, testutil.DiscardLogger())

	items := []Item{
		{ChunkableType: "snippet", ChunkableID: 1, Text: "a"},
		{ChunkableType: "snippet", ChunkableID: 2, Text: "b"},
	}

	start := time.Now()
	rep, err := ing.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Ingested != 2 {
		t.Fatalf("report = %+v, want 2 ingested", rep)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("run finished in %v, expected the limiter to pace it", elapsed)
	}
}

func TestIngestor_Run_EmptyBatch(t *testing.T) {
	ing := NewIngestor(&mockStore{}, &mockTagSource{}, nil, testutil.DiscardLogger())

	rep, err := ing.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Ingested+rep.Skipped+rep.Failed != 0 {
		t.Errorf("report = %+v, want all zeros", rep)
	}
}
