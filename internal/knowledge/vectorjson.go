package knowledge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EncodeVector serializes an embedding as a JSON array of plain decimal
// numbers.
//
// Contract: the output never contains exponent notation. Very small
// components would otherwise serialize as "1e-10"-style literals, which
// strict downstream JSON consumers and fixed-format storage columns
// reject or truncate. strconv's 'f' format guarantees plain decimals at
// the shortest representation that round-trips float32.
func EncodeVector(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeVector parses a JSON float array produced by EncodeVector (or any
// valid JSON number array).
func DecodeVector(s string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("decoding vector json: %w", err)
	}
	return vec, nil
}
