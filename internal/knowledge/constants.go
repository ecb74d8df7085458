package knowledge

import "time"

// VectorDimension is the embedding width every stored and query vector
// must have. It matches the configured embedding model's output; changing
// it requires re-embedding the whole corpus.
const VectorDimension = 768

// Search limits. A zero request limit falls back to the default; anything
// above the maximum is clamped, never rejected.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

// Score floors per backend. The native path sits behind an HNSW index and
// filters in SQL, so it can afford a stricter floor; the scan path keeps a
// looser one because it already pays for exact similarity.
const (
	nativeScoreThreshold = 0.70
	scanScoreThreshold   = 0.50
)

// Scan bounds. The brute-force backend pages candidates in batches and
// refuses to walk more than scanCandidateLimit rows per query.
const (
	scanCandidateLimit = 2000
	scanBatchSize      = 100
)

// defaultSearchTimeout bounds one search round trip, covering scope
// resolution, the backend call, and result assembly.
const defaultSearchTimeout = 10 * time.Second

// Chunking bounds, in bytes. A section is the retrieval unit; a slice is
// the embedding unit cut from oversized sections.
const (
	maxSectionLen = 6000
	maxSliceLen   = 1500
)
