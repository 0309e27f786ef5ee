package personalization

import "github.com/dustin/showfinder/internal/facet"

// DefaultAlpha weighs query and taste equally
const DefaultAlpha = 0.5

// ClampAlpha keeps alpha inside [0, 1]
func ClampAlpha(alpha float64) float64 {
	if alpha != alpha {
		return DefaultAlpha
	}
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// Blend mixes the query vector q with the taste vector u as
// normalize(alpha*q + (1-alpha)*u). Without u, or when the mix cancels to
// zero, q is returned unchanged.
func Blend(q, u facet.Vector, alpha float64) facet.Vector {
	if len(u) == 0 || len(u) != len(q) {
		return q
	}
	alpha = ClampAlpha(alpha)

	mixed := make(facet.Vector, len(q))
	for i := range q {
		mixed[i] = alpha*q[i] + (1-alpha)*u[i]
	}
	out, ok := facet.Normalize(mixed)
	if !ok {
		return q
	}
	return out
}
