// Package vecmath holds small vector helpers shared by the embedding
// clients and the sqlite similarity functions.
package vecmath

import "github.com/viant/vec/search"

// L2Normalize scales v to unit length. Zero vectors are returned
// unchanged.
func L2Normalize(v []float32) []float32 {
	mag := search.Float32s(v).Magnitude()
	if mag == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / mag
	}
	return out
}

// CosineSimilarity computes the cosine similarity between two vectors
// of equal dimensionality. Zero-magnitude input yields 0.
func CosineSimilarity(a, b []float32) float64 {
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0
	}
	return 1 - float64(va.CosineDistance(b))
}
