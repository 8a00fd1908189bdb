// Package vecmath has the small float32 vector helpers shared by the
// semantic chunker and the index backends.
package vecmath

import "math"

func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func Norm(a []float32) float32 {
	var sum float32
	for _, v := range a {
		sum += v * v
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineSimilarity returns 0 for zero-length or zero-norm inputs rather
// than NaN, so degenerate embeddings rank last instead of poisoning the
// sort.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2].
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}
