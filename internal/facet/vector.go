package facet

import "math"

// Vector is a dense embedding. Stored catalog vectors are unit length.
type Vector []float64

// Dot returns the inner product over the shared prefix of a and b
func Dot(a, b Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the Euclidean length of v
func Norm(v Vector) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize returns a unit-length copy of v. It reports false when v has zero
// or non-finite norm, in which case the returned vector is nil.
func Normalize(v Vector) (Vector, bool) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, true
}

// CosineDistance is 1 - dot(a, b) for unit vectors, clamped to [0, MaxDistance].
// Empty or mismatched inputs are as far apart as possible.
func CosineDistance(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return MaxDistance
	}
	d := 1 - Dot(a, b)
	switch {
	case math.IsNaN(d):
		return MaxDistance
	case d < 0:
		return 0
	case d > MaxDistance:
		return MaxDistance
	}
	return d
}

// Clone returns an independent copy of v
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// IsZero reports whether every component is zero (also true for an empty vector)
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Bundle maps facets to query-side vectors. A facet without a usable vector
// means "no preference" and scores the maximal distance.
type Bundle map[Facet]Vector

// Has reports whether the bundle carries a usable vector for f
func (b Bundle) Has(f Facet) bool {
	v, ok := b[f]
	return ok && len(v) > 0 && !v.IsZero()
}
