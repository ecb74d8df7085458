// Package testutil provides shared test infrastructure: an in-memory
// persistence fake, a deterministic embedder, and a Postgres container
// harness for integration tests.
package testutil

import (
	"context"
	"math/rand"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/deskhive/kbase/internal/knowledge"
)

// StubEmbedder is a deterministic Embedder for tests. Identical texts
// always produce identical vectors; unrelated texts produce near-orthogonal
// pseudo-random vectors, so similarity assertions behave like they would
// against a real model without any network calls.
type StubEmbedder struct {
	mu sync.Mutex

	// Vectors overrides the generated vector for exact texts. Tests that
	// need controlled similarity register their vectors here.
	Vectors map[string][]float32

	// Err, when set, is returned by every Embed call.
	Err error

	// Calls records every embedded text in order.
	Calls []string
}

// NewStubEmbedder creates an empty stub.
func NewStubEmbedder() *StubEmbedder {
	return &StubEmbedder{Vectors: make(map[string][]float32)}
}

// Embed returns the registered or generated vector for text.
func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Calls = append(e.Calls, text)
	if e.Err != nil {
		return nil, e.Err
	}
	if vec, ok := e.Vectors[text]; ok {
		return vec, nil
	}
	return DeterministicVector(text), nil
}

// CallCount returns how many Embed calls the stub has served.
func (e *StubEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// DeterministicVector derives a pseudo-random vector from the text's hash.
func DeterministicVector(text string) []float32 {
	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(text))))
	vec := make([]float32, knowledge.VectorDimension)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	return vec
}
