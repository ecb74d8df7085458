package knowledge

import "math"

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||).
//
// The boolean result is false — meaning "no comparable similarity", never
// an error — when the vectors have different lengths, either is empty, or
// either has zero magnitude. One malformed stored vector must not abort a
// scan over thousands of candidates.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, false
	}
	return dot / denom, true
}
