package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deskhive/kbase/internal/knowledge"
)

// FakeDB is an in-memory implementation of knowledge.Querier and
// knowledge.SearchQuerier. It mirrors the semantics of internal/postgres —
// tag scope resolution reduces to knowledge.UnionScope, lineage dedup
// keeps the best score, deletes cascade — so store and engine tests run
// against it without a database.
//
// FakeDB is safe for concurrent use.
type FakeDB struct {
	mu sync.Mutex

	nextChunkID  int64
	nextVectorID int64

	chunkables    map[knowledge.Identity]fakeChunkable
	chunks        map[int64]knowledge.Chunk
	vectors       map[string]fakeVector
	chunkableTags map[knowledge.Identity][]string
	containerTags map[knowledge.Identity][]string
	agents        map[knowledge.Identity][]int64

	// FailWith, when set, is returned by every call. Tests use it to
	// exercise error paths.
	FailWith error
}

type fakeChunkable struct {
	params knowledge.UpsertChunkableParams
}

type fakeVector struct {
	id        int64
	json      string
	embedding []float32
}

var _ knowledge.Querier = (*FakeDB)(nil)
var _ knowledge.SearchQuerier = (*FakeDB)(nil)

// NewFakeDB creates an empty fake.
func NewFakeDB() *FakeDB {
	return &FakeDB{
		chunkables:    make(map[knowledge.Identity]fakeChunkable),
		chunks:        make(map[int64]knowledge.Chunk),
		vectors:       make(map[string]fakeVector),
		chunkableTags: make(map[knowledge.Identity][]string),
		containerTags: make(map[knowledge.Identity][]string),
		agents:        make(map[knowledge.Identity][]int64),
	}
}

func (f *FakeDB) UpsertChunkable(_ context.Context, arg knowledge.UpsertChunkableParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.chunkables[arg.Chunkable] = fakeChunkable{params: arg}
	return nil
}

func (f *FakeDB) ReplaceChunkableTags(_ context.Context, chunkable knowledge.Identity, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.chunkableTags[chunkable] = append([]string(nil), tags...)
	return nil
}

func (f *FakeDB) ReplaceContainerTags(_ context.Context, container knowledge.Identity, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.containerTags[container] = append([]string(nil), tags...)
	return nil
}

func (f *FakeDB) ReplaceChunkableAgents(_ context.Context, chunkable knowledge.Identity, agentIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.agents[chunkable] = append([]int64(nil), agentIDs...)
	return nil
}

func (f *FakeDB) ContainerTags(_ context.Context, container knowledge.Identity) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	tags := append([]string(nil), f.containerTags[container]...)
	sort.Strings(tags)
	return tags, nil
}

func (f *FakeDB) ChunksByChunkable(_ context.Context, chunkable knowledge.Identity) ([]knowledge.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []knowledge.Chunk
	for _, c := range f.chunks {
		if c.Chunkable == chunkable {
			out = append(out, c)
		}
	}
	// Roots before children, each level by position, matching the SQL.
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].ParentID == 0, out[j].ParentID == 0
		if ri != rj {
			return ri
		}
		if out[i].ParentID != out[j].ParentID {
			return out[i].ParentID < out[j].ParentID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (f *FakeDB) VectorIDByHash(_ context.Context, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return 0, f.FailWith
	}
	v, ok := f.vectors[hash]
	if !ok {
		return 0, knowledge.ErrNotFound
	}
	return v.id, nil
}

func (f *FakeDB) UpsertVector(_ context.Context, arg knowledge.UpsertVectorParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return 0, f.FailWith
	}
	if v, ok := f.vectors[arg.Hash]; ok {
		return v.id, nil
	}
	f.nextVectorID++
	f.vectors[arg.Hash] = fakeVector{
		id:        f.nextVectorID,
		json:      arg.VectorJSON,
		embedding: append([]float32(nil), arg.Embedding...),
	}
	return f.nextVectorID, nil
}

func (f *FakeDB) InsertChunk(_ context.Context, arg knowledge.InsertChunkParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return 0, f.FailWith
	}
	f.nextChunkID++
	now := time.Now()
	f.chunks[f.nextChunkID] = knowledge.Chunk{
		ID:        f.nextChunkID,
		Chunkable: arg.Chunkable,
		ParentID:  arg.ParentID,
		Position:  arg.Position,
		Content:   arg.Content,
		Hash:      arg.Hash,
		VectorID:  arg.VectorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return f.nextChunkID, nil
}

func (f *FakeDB) UpdateChunkPosition(_ context.Context, chunkID int64, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	c, ok := f.chunks[chunkID]
	if !ok {
		return knowledge.ErrNotFound
	}
	c.Position = position
	c.UpdatedAt = time.Now()
	f.chunks[chunkID] = c
	return nil
}

func (f *FakeDB) DeleteChunks(_ context.Context, chunkIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	doomed := make(map[int64]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		doomed[id] = struct{}{}
	}
	for id, c := range f.chunks {
		if _, ok := doomed[c.ParentID]; ok {
			delete(f.chunks, id)
		}
	}
	for id := range doomed {
		delete(f.chunks, id)
	}
	return nil
}

func (f *FakeDB) DeleteChunkable(_ context.Context, chunkable knowledge.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	delete(f.chunkables, chunkable)
	delete(f.chunkableTags, chunkable)
	delete(f.agents, chunkable)
	for id, c := range f.chunks {
		if c.Chunkable == chunkable {
			delete(f.chunks, id)
		}
	}
	return nil
}

func (f *FakeDB) TagScope(_ context.Context, tag string) (knowledge.IdentitySet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	var direct, viaCategory, viaWebsite []knowledge.Identity
	for id, tags := range f.chunkableTags {
		if containsTag(tags, tag) {
			direct = append(direct, id)
		}
	}
	for id, rec := range f.chunkables {
		container := rec.params.Container
		if container == (knowledge.Identity{}) {
			continue
		}
		if !containsTag(f.containerTags[container], tag) {
			continue
		}
		switch container.Type {
		case knowledge.TypeCategory:
			viaCategory = append(viaCategory, id)
		case knowledge.TypeWebsite:
			viaWebsite = append(viaWebsite, id)
		}
	}
	return knowledge.UnionScope(direct, viaCategory, viaWebsite), nil
}

func (f *FakeDB) SearchEmbedded(_ context.Context, arg knowledge.SearchEmbeddedParams) ([]knowledge.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	embeddings := make(map[int64][]float32, len(f.vectors))
	for _, v := range f.vectors {
		embeddings[v.id] = v.embedding
	}

	best := make(map[int64]knowledge.SearchHit)
	for _, c := range f.chunks {
		if c.VectorID == 0 || !f.matchesLocked(c, arg.AgentID, arg.Scope) {
			continue
		}
		score, ok := knowledge.CosineSimilarity(arg.Vector, embeddings[c.VectorID])
		if !ok || score <= arg.MinScore {
			continue
		}
		lineage := c.ID
		if c.ParentID != 0 {
			lineage = c.ParentID
		}
		if prev, seen := best[lineage]; !seen || score > prev.Score {
			best[lineage] = knowledge.SearchHit{ID: c.ID, ParentID: c.ParentID, Score: score}
		}
	}

	hits := make([]knowledge.SearchHit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if int32(len(hits)) > arg.Limit {
		hits = hits[:arg.Limit]
	}
	return hits, nil
}

func (f *FakeDB) ListEmbedded(_ context.Context, arg knowledge.ListEmbeddedParams) ([]knowledge.EmbeddedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	jsonByVectorID := make(map[int64]string, len(f.vectors))
	for _, v := range f.vectors {
		jsonByVectorID[v.id] = v.json
	}

	var out []knowledge.EmbeddedChunk
	for _, c := range f.chunks {
		if c.VectorID == 0 || c.ID <= arg.AfterID || !f.matchesLocked(c, arg.AgentID, arg.Scope) {
			continue
		}
		out = append(out, knowledge.EmbeddedChunk{
			ID:         c.ID,
			ParentID:   c.ParentID,
			VectorJSON: jsonByVectorID[c.VectorID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int32(len(out)) > arg.Limit {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *FakeDB) ChunksWithSummaries(_ context.Context, chunkIDs []int64) ([]knowledge.AssembledChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	var out []knowledge.AssembledChunk
	for _, id := range chunkIDs {
		c, ok := f.chunks[id]
		if !ok {
			continue
		}
		rec := f.chunkables[c.Chunkable]
		out = append(out, knowledge.AssembledChunk{
			ID:        c.ID,
			ParentID:  c.ParentID,
			Chunkable: c.Chunkable,
			Content:   c.Content,
			Summary:   knowledge.Summary{Title: rec.params.Title, URL: rec.params.URL},
		})
	}
	return out, nil
}

// CorruptVector overwrites a stored vector's JSON, simulating a row that
// was damaged out of band. Used by scan backend tests.
func (f *FakeDB) CorruptVector(hash, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vectors[hash]; ok {
		v.json = raw
		f.vectors[hash] = v
	}
}

// ChunkCount reports the number of stored chunk rows.
func (f *FakeDB) ChunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

// VectorCount reports the number of stored vector rows.
func (f *FakeDB) VectorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

func (f *FakeDB) matchesLocked(c knowledge.Chunk, agentID int64, scope []knowledge.Identity) bool {
	if agentID != 0 {
		found := false
		for _, a := range f.agents[c.Chunkable] {
			if a == agentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if scope == nil {
		return true
	}
	for _, s := range scope {
		if s == c.Chunkable {
			return true
		}
	}
	return false
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
