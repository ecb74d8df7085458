package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Embedder turns text into a vector. The store and the search engine only
// ever call this single method; which model or provider sits behind it is
// wiring the app layer decides.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder wraps a Genkit embedder.
func NewGenkitEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed generates an embedding for a single text.
func (g *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != VectorDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), VectorDimension)
	}
	return vec, nil
}
