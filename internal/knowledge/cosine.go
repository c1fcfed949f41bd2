package knowledge

import (
	"fmt"
	"math"
)

// cosineSimilarity computes dot(a,b) / (|a|*|b|).
// A dimension mismatch is a precondition violation and reported as an error;
// a zero-magnitude vector yields an error rather than NaN.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}

	return dot / denom, nil
}
