package ingest

import (
	"strings"
	"testing"

	"github.com/deskhive/kbase/internal/knowledge"
)

func TestDecodeItems(t *testing.T) {
	raw := `[
		{"chunkable_type": "article", "chunkable_id": 1, "title": "A", "text": "body", "container_id": 5},
		{"chunkable_type": "snippet", "chunkable_id": 2, "text": "short", "tags": ["faq"]}
	]`

	items, err := DecodeItems(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ChunkableType != "article" || items[0].ContainerID != 5 {
		t.Errorf("item 0 = %+v", items[0])
	}
	if len(items[1].Tags) != 1 || items[1].Tags[0] != "faq" {
		t.Errorf("item 1 tags = %v", items[1].Tags)
	}
}

func TestDecodeItems_Malformed(t *testing.T) {
	if _, err := DecodeItems(strings.NewReader("{not an array")); err == nil {
		t.Error("malformed payload should fail to decode")
	}
}

func TestItem_Chunkable(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		wantType knowledge.Type
		wantErr  bool
	}{
		{
			name:     "article",
			item:     Item{ChunkableType: "article", ChunkableID: 1, Text: "t", ContainerID: 9},
			wantType: knowledge.TypeArticle,
		},
		{
			name:     "webpage",
			item:     Item{ChunkableType: "webpage", ChunkableID: 2, URL: "https://example.com", Text: "t"},
			wantType: knowledge.TypeWebpage,
		},
		{
			name:     "document",
			item:     Item{ChunkableType: "document", ChunkableID: 3, Title: "manual.pdf", Text: "t"},
			wantType: knowledge.TypeDocument,
		},
		{
			name:     "snippet",
			item:     Item{ChunkableType: "snippet", ChunkableID: 4, Text: "t"},
			wantType: knowledge.TypeSnippet,
		},
		{
			name:    "unknown type",
			item:    Item{ChunkableType: "video", ChunkableID: 5},
			wantErr: true,
		},
		{
			name:    "missing id",
			item:    Item{ChunkableType: "article"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.item.Chunkable()
			if tt.wantErr {
				if err == nil {
					t.Error("conversion succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("conversion failed: %v", err)
			}
			if got := c.Identity().Type; got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
			if c.Identity().ID != tt.item.ChunkableID {
				t.Errorf("id = %d, want %d", c.Identity().ID, tt.item.ChunkableID)
			}
		})
	}
}

func TestItem_Chunkable_ArticleContainer(t *testing.T) {
	c, err := Item{ChunkableType: "article", ChunkableID: 1, Text: "t", ContainerID: 9}.Chunkable()
	if err != nil {
		t.Fatal(err)
	}
	container, ok := c.Container()
	if !ok {
		t.Fatal("article with a category should report a container")
	}
	want := knowledge.Identity{Type: knowledge.TypeCategory, ID: 9}
	if container != want {
		t.Errorf("container = %v, want %v", container, want)
	}
}

func TestItem_Chunkable_Timestamps(t *testing.T) {
	c, err := Item{ChunkableType: "snippet", ChunkableID: 1, Text: "t", CreatedAt: 1700000000}.Chunkable()
	if err != nil {
		t.Fatal(err)
	}
	snip, ok := c.(knowledge.Snippet)
	if !ok {
		t.Fatalf("got %T, want Snippet", c)
	}
	if snip.CreatedAt.Unix() != 1700000000 {
		t.Errorf("created at = %v", snip.CreatedAt)
	}
	if !snip.UpdatedAt.IsZero() {
		t.Errorf("absent epoch should stay zero, got %v", snip.UpdatedAt)
	}
}
