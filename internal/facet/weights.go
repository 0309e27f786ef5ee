package facet

import "math"

const (
	// DefaultWeight applies to any facet the interpreter did not weigh
	DefaultWeight = 0.5
	// MainWeight is fixed and never taken from the interpreter
	MainWeight = 0.5
)

// Weights are raw per-facet multipliers in [0, 1]. They are not normalized.
type Weights map[Facet]float64

// Get returns the weight for f, clamped to [0, 1]. Missing or non-finite
// weights fall back to DefaultWeight.
func (w Weights) Get(f Facet) float64 {
	v, ok := w[f]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultWeight
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Resolve returns a complete weight set with main pinned to MainWeight
func (w Weights) Resolve() Weights {
	out := make(Weights, Count)
	for _, f := range All {
		out[f] = w.Get(f)
	}
	out[Main] = MainWeight
	return out
}

// WeightedDistance sums weight * resolved distance over every facet.
// Missing weights count as DefaultWeight; absent distances as MaxDistance.
func WeightedDistance(w Weights, d Distances) float64 {
	var sum float64
	for _, f := range All {
		sum += w.Get(f) * d.Resolved(f)
	}
	return sum
}
