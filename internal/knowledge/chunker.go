package knowledge

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// chunker.go splits a chunkable's text into hash-addressed segments.
//
// Two levels: a Section is the unit returned from search; when a section
// exceeds the embedding-friendly slice length it is cut into child Slices,
// which are what actually get embedded. Search matches slices, dedups by
// section, and returns the section content.
//
// Hashing is change detection, not security: re-ingesting unchanged text
// must map to identical hashes so existing chunk and vector rows (and
// their paid-for embeddings) are reused instead of recreated.

var paragraphRe = regexp.MustCompile(`\n{2,}`)

// Slice is one embeddable cut of a section.
type Slice struct {
	Text string
	Hash string
}

// Section is one retrievable segment of a chunkable's text. Slices is nil
// when the section is short enough to be embedded whole.
type Section struct {
	Text   string
	Hash   string
	Slices []Slice
}

// ContentHash returns the xxHash of the text as fixed-width hex. Stateless
// and deterministic: equal text always yields equal hashes.
func ContentHash(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// SplitText cuts text into ordered sections. Empty or whitespace-only text
// yields no sections — that is a valid outcome, not an error. Section
// order follows text order so consumers can reconstruct document order.
func SplitText(text string) []Section {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var sections []Section
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		sections = append(sections, newSection(cur.String()))
		cur.Reset()
	}

	for _, p := range paragraphs {
		// A single paragraph above the section bound is split hard.
		if len(p) > maxSectionLen {
			flush()
			for _, w := range cutAt(p, maxSectionLen) {
				sections = append(sections, newSection(w))
			}
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(p) > maxSectionLen {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()

	return sections
}

func newSection(text string) Section {
	sec := Section{Text: text, Hash: ContentHash(text)}
	if len(text) <= maxSliceLen {
		return sec
	}
	for _, w := range cutAt(text, maxSliceLen) {
		sec.Slices = append(sec.Slices, Slice{Text: w, Hash: ContentHash(w)})
	}
	return sec
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphRe.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cutAt splits text into windows of at most limit bytes, preferring to
// break at whitespace near the window end so words stay intact. Cuts
// never land inside a multibyte rune: unspaced text (CJK and similar)
// must still yield valid UTF-8, both for storage and for hashing.
func cutAt(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := limit
		// Look back a short distance for a whitespace boundary.
		if i := strings.LastIndexAny(text[:limit], " \t\n"); i > limit-200 && i > 0 {
			cut = i
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
