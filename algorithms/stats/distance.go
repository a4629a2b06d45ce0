package stats

import (
	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Zero-norm vectors (and mismatched lengths) yield 0 rather than NaN so
// that silent frames compare as dissimilar instead of poisoning a
// similarity matrix.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA < 1e-10 || normB < 1e-10 {
		return 0.0
	}

	return floats.Dot(a, b) / (normA * normB)
}
