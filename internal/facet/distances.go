package facet

import (
	"encoding/json"
	"math"
)

// MaxDistance is the largest possible cosine distance and stands in for any
// missing facet.
const MaxDistance = 2.0

// Distance is one facet's distance or the absent marker
type Distance struct {
	Value   float64
	Present bool
}

// Of wraps a measured distance. Non-finite values become absent; others are
// clamped into [0, MaxDistance].
func Of(v float64) Distance {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Distance{}
	}
	if v < 0 {
		v = 0
	}
	if v > MaxDistance {
		v = MaxDistance
	}
	return Distance{Value: v, Present: true}
}

// Absent is the explicit "no vector" marker
func Absent() Distance {
	return Distance{}
}

// Resolve returns the value used in scoring
func (d Distance) Resolve() float64 {
	if !d.Present {
		return MaxDistance
	}
	return d.Value
}

// Distances holds one entry per facet; every facet is always present either as
// a value or as the absent marker.
type Distances struct {
	entries [Count]Distance
}

// NewDistances returns a set where every facet is absent
func NewDistances() Distances {
	return Distances{}
}

// Set records a measured distance for f
func (d *Distances) Set(f Facet, v float64) {
	if i := f.index(); i >= 0 {
		d.entries[i] = Of(v)
	}
}

// SetAbsent marks f as having no vector
func (d *Distances) SetAbsent(f Facet) {
	if i := f.index(); i >= 0 {
		d.entries[i] = Absent()
	}
}

// Get returns the entry for f; unknown facets are absent
func (d Distances) Get(f Facet) Distance {
	if i := f.index(); i >= 0 {
		return d.entries[i]
	}
	return Absent()
}

// Resolved returns the scoring value for f, MaxDistance when absent
func (d Distances) Resolved(f Facet) float64 {
	return d.Get(f).Resolve()
}

// Map returns resolved values keyed by facet
func (d Distances) Map() map[Facet]float64 {
	out := make(map[Facet]float64, Count)
	for i, f := range All {
		out[f] = d.entries[i].Resolve()
	}
	return out
}

// DistancesFromMap builds a set from raw values; missing facets stay absent
func DistancesFromMap(m map[Facet]float64) Distances {
	d := NewDistances()
	for f, v := range m {
		d.Set(f, v)
	}
	return d
}

func (d Distances) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

func (d *Distances) UnmarshalJSON(data []byte) error {
	var raw map[Facet]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = DistancesFromMap(raw)
	return nil
}
