package knowledge

import (
	"sort"
	"time"
)

// SearchDoc is the searchable projection of one chunkable: the identity,
// the variant-specific display payload, the merged tag set, the raw text,
// and normalized timestamps. One projection is the unit of re-indexing —
// whenever the source content or its tag set changes, the projection is
// rebuilt and re-synced.
type SearchDoc struct {
	Identity  Identity
	Title     string
	URL       string
	Container Identity // zero value when the variant has no container
	Tags      []string // own tags ∪ container tags, sorted, deduplicated
	Content   string
	CreatedAt int64 // epoch seconds; 0 means unknown, keeping sorts stable
	UpdatedAt int64
}

// Project builds the searchable projection for a chunkable. ownTags are
// the tags attached to the chunkable itself; containerTags come from its
// category or website, when it has one.
func Project(c Chunkable, ownTags, containerTags []string) SearchDoc {
	sum := c.Summary()
	doc := SearchDoc{
		Identity: c.Identity(),
		Title:    sum.Title,
		URL:      sum.URL,
		Tags:     mergeTags(ownTags, containerTags),
		Content:  c.Text(),
	}
	if container, ok := c.Container(); ok {
		doc.Container = container
	}
	created, updated := chunkableTimes(c)
	doc.CreatedAt = epochOrZero(created)
	doc.UpdatedAt = epochOrZero(updated)
	return doc
}

func chunkableTimes(c Chunkable) (time.Time, time.Time) {
	switch v := c.(type) {
	case Article:
		return v.CreatedAt, v.UpdatedAt
	case Webpage:
		return v.CreatedAt, v.UpdatedAt
	case Document:
		return v.CreatedAt, v.UpdatedAt
	case Snippet:
		return v.CreatedAt, v.UpdatedAt
	default:
		return time.Time{}, time.Time{}
	}
}

func epochOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func mergeTags(own, container []string) []string {
	seen := make(map[string]struct{}, len(own)+len(container))
	var merged []string
	for _, t := range own {
		if _, ok := seen[t]; !ok && t != "" {
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
	}
	for _, t := range container {
		if _, ok := seen[t]; !ok && t != "" {
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
	}
	sort.Strings(merged)
	return merged
}
