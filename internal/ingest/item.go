// Package ingest adapts external content payloads into searchable
// projections and drives batched, rate-limited synchronization into the
// knowledge store.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/deskhive/kbase/internal/knowledge"
)

// Item is one content payload as delivered by the owning product. Text
// extraction happens upstream; the engine receives plain text plus the
// metadata needed for visibility and display.
type Item struct {
	ChunkableType string   `json:"chunkable_type"`
	ChunkableID   int64    `json:"chunkable_id"`
	Title         string   `json:"title,omitempty"`
	URL           string   `json:"url,omitempty"`
	Text          string   `json:"text"`
	Tags          []string `json:"tags,omitempty"`
	AgentIDs      []int64  `json:"agent_ids,omitempty"`
	ContainerID   int64    `json:"container_id,omitempty"`
	CreatedAt     int64    `json:"created_at,omitempty"`
	UpdatedAt     int64    `json:"updated_at,omitempty"`
}

// DecodeItems parses a JSON array of items.
func DecodeItems(r io.Reader) ([]Item, error) {
	var items []Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

// Chunkable converts the item into its typed variant.
func (it Item) Chunkable() (knowledge.Chunkable, error) {
	if it.ChunkableID == 0 {
		return nil, fmt.Errorf("item has no chunkable_id")
	}
	created := timeOrZero(it.CreatedAt)
	updated := timeOrZero(it.UpdatedAt)

	switch knowledge.Type(it.ChunkableType) {
	case knowledge.TypeArticle:
		return knowledge.Article{
			ID:         it.ChunkableID,
			Title:      it.Title,
			Slug:       it.URL,
			Body:       it.Text,
			CategoryID: it.ContainerID,
			CreatedAt:  created,
			UpdatedAt:  updated,
		}, nil
	case knowledge.TypeWebpage:
		return knowledge.Webpage{
			ID:        it.ChunkableID,
			Title:     it.Title,
			URL:       it.URL,
			Content:   it.Text,
			WebsiteID: it.ContainerID,
			CreatedAt: created,
			UpdatedAt: updated,
		}, nil
	case knowledge.TypeDocument:
		return knowledge.Document{
			ID:        it.ChunkableID,
			Name:      it.Title,
			Content:   it.Text,
			CreatedAt: created,
			UpdatedAt: updated,
		}, nil
	case knowledge.TypeSnippet:
		return knowledge.Snippet{
			ID:        it.ChunkableID,
			Title:     it.Title,
			Body:      it.Text,
			CreatedAt: created,
			UpdatedAt: updated,
		}, nil
	default:
		return nil, fmt.Errorf("unknown chunkable type %q", it.ChunkableType)
	}
}

func timeOrZero(epoch int64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0).UTC()
}
