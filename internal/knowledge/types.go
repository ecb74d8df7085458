package knowledge

import "time"

// Type discriminates the kinds of content the engine can ingest, plus the
// container kinds that carry inherited tag visibility.
type Type string

// Chunkable types.
const (
	TypeArticle  Type = "article"
	TypeWebpage  Type = "webpage"
	TypeDocument Type = "document"
	TypeSnippet  Type = "snippet"
)

// Container types. Containers are not chunkable themselves; tags attached
// to them extend visibility to the chunkables they hold (articles inherit
// from their category, webpages from their website).
const (
	TypeCategory Type = "category"
	TypeWebsite  Type = "website"
)

// Identity names one chunkable (or container) record: type plus the id it
// carries in the owning product. The pair is the foreign key used across
// chunk rows, tag joins, and tenant joins.
type Identity struct {
	Type Type  `json:"type"`
	ID   int64 `json:"id"`
}

// Summary is the display payload attached to a search result so callers
// can render a hit without a second lookup.
type Summary struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Chunkable is the sum type over ingestible content. Each variant supplies
// its identity, full text, display payload, and (when applicable) the
// container it inherits tag visibility from.
type Chunkable interface {
	Identity() Identity
	Text() string
	Summary() Summary

	// Container returns the tag-visibility container, if the variant has
	// one (article → category, webpage → website).
	Container() (Identity, bool)
}

// Article is a help-center article living inside a category.
type Article struct {
	ID         int64
	Title      string
	Slug       string
	Body       string
	CategoryID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a Article) Identity() Identity { return Identity{Type: TypeArticle, ID: a.ID} }
func (a Article) Text() string       { return a.Body }
func (a Article) Summary() Summary   { return Summary{Title: a.Title, URL: a.Slug} }

func (a Article) Container() (Identity, bool) {
	if a.CategoryID == 0 {
		return Identity{}, false
	}
	return Identity{Type: TypeCategory, ID: a.CategoryID}, true
}

// Webpage is a scanned page belonging to a website. The engine receives
// the extracted text only; crawling happens upstream.
type Webpage struct {
	ID        int64
	Title     string
	URL       string
	Content   string
	WebsiteID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (w Webpage) Identity() Identity { return Identity{Type: TypeWebpage, ID: w.ID} }
func (w Webpage) Text() string       { return w.Content }
func (w Webpage) Summary() Summary   { return Summary{Title: w.Title, URL: w.URL} }

func (w Webpage) Container() (Identity, bool) {
	if w.WebsiteID == 0 {
		return Identity{}, false
	}
	return Identity{Type: TypeWebsite, ID: w.WebsiteID}, true
}

// Document is an uploaded file whose text was already extracted upstream.
type Document struct {
	ID        int64
	Name      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Document) Identity() Identity        { return Identity{Type: TypeDocument, ID: d.ID} }
func (d Document) Text() string              { return d.Content }
func (d Document) Summary() Summary          { return Summary{Title: d.Name} }
func (Document) Container() (Identity, bool) { return Identity{}, false }

// Snippet is a short free-form text unit.
type Snippet struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Snippet) Identity() Identity        { return Identity{Type: TypeSnippet, ID: s.ID} }
func (s Snippet) Text() string              { return s.Body }
func (s Snippet) Summary() Summary          { return Summary{Title: s.Title} }
func (Snippet) Container() (Identity, bool) { return Identity{}, false }

// Chunk is one stored slice of a chunkable's text.
//
// ParentID and VectorID use 0 for "none": a chunk with ParentID 0 is its
// own lineage root; a chunk with VectorID 0 has no embedding yet and is
// invisible to search.
type Chunk struct {
	ID        int64
	Chunkable Identity
	ParentID  int64
	Position  int
	Content   string
	Hash      string
	VectorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Searchable reports whether the chunk may appear in search results.
// The check is always computed from stored state — a resolved vector row —
// never from whether a relation happened to be loaded.
func (c Chunk) Searchable() bool { return c.VectorID != 0 }

// Query is one search request.
type Query struct {
	// Vector is the embedded query text. Required.
	Vector []float32

	// Limit caps the result count. Zero means DefaultSearchLimit; values
	// above MaxSearchLimit are clamped.
	Limit int32

	// AgentID restricts results to chunkables owned by the given tenant.
	// Zero means no tenant restriction.
	AgentID int64

	// Tag restricts results to the tag's visibility scope, including
	// container-inherited visibility. Empty means no tag restriction.
	Tag string
}

// Result is one ranked search hit. ChunkID refers to the lineage
// representative (the parent chunk when the matching slice had one).
type Result struct {
	ChunkID   int64    `json:"chunk_id"`
	Chunkable Identity `json:"chunkable"`
	Summary   Summary  `json:"summary"`
	Content   string   `json:"content"`
	Score     float64  `json:"score"`
}
