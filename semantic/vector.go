package semantic

import "math"

// NormalizeVector returns v scaled to unit length. A zero vector comes back
// as a new zero vector of the same width.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return result
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, val := range v {
		result[i] = float32(float64(val) * inv)
	}
	return result
}

// Cosine returns the cosine similarity of a and b. ok is false when either
// vector is zero, in which case the similarity is undefined.
func Cosine(a, b []float32) (sim float64, ok bool, err error) {
	if len(a) != len(b) {
		return 0, false, ErrDimensionMismatch
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true, nil
}

// Similarity maps a cosine into [0, 1]. Opposed directions carry no
// evidence of copying, so negative values become 0.
func Similarity(cosine float64) float64 {
	switch {
	case cosine < 0:
		return 0
	case cosine > 1:
		return 1
	default:
		return cosine
	}
}
