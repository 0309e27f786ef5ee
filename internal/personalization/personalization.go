package personalization

import (
	"github.com/dustin/showfinder/internal/facet"
)

// Rating is the explicit feedback a user left on a show
type Rating int

const (
	RatingStrongNegative Rating = -1
	RatingUnrated        Rating = 0
	RatingPositive       Rating = 1
	RatingStrongPositive Rating = 2
)

// DefaultMinInteractions is the smallest usable history that yields a profile
const DefaultMinInteractions = 3

// Weight maps a rating onto the confidence ladder. A strong dislike adds
// nothing to the mean; anything unrecognised counts as unrated history.
func (r Rating) Weight() float64 {
	switch r {
	case RatingStrongPositive:
		return 5.0
	case RatingPositive:
		return 3.0
	case RatingStrongNegative:
		return 0.0
	default:
		return 0.5
	}
}

// Valid reports whether r is one of the defined ratings
func (r Rating) Valid() bool {
	return r >= RatingStrongNegative && r <= RatingStrongPositive
}

func (r Rating) String() string {
	switch r {
	case RatingStrongNegative:
		return "strong-negative"
	case RatingPositive:
		return "positive"
	case RatingStrongPositive:
		return "strong-positive"
	default:
		return "unrated"
	}
}

// Interaction is one entry of a user's history with the watched show's main
// vector resolved. Vector is nil when the show has no main embedding.
type Interaction struct {
	ShowID int64
	Rating Rating
	Vector facet.Vector
}

// Aggregator builds a taste vector from an ordered history. It keeps no state
// between calls.
type Aggregator struct {
	minInteractions int
}

// NewAggregator returns an aggregator; non-positive minimums use the default
func NewAggregator(minInteractions int) *Aggregator {
	if minInteractions <= 0 {
		minInteractions = DefaultMinInteractions
	}
	return &Aggregator{minInteractions: minInteractions}
}

// MinInteractions returns the configured minimum usable history size
func (a *Aggregator) MinInteractions() int {
	return a.minInteractions
}

// RecencyWeight ramps linearly from 0.5 for the oldest of n entries to 1.0 for
// the newest.
func RecencyWeight(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 0.5 + 0.5*float64(i)/float64(n-1)
}

// Aggregate returns the unit taste vector for history ordered oldest first.
// It reports false when fewer than the minimum entries carry a vector or when
// the weights cancel out entirely.
func (a *Aggregator) Aggregate(history []Interaction) (facet.Vector, bool) {
	usable := usableInteractions(history)
	if len(usable) < a.minInteractions || len(usable) == 0 {
		return nil, false
	}

	dim := len(usable[0].Vector)
	sum := make(facet.Vector, dim)
	var total float64
	for i, it := range usable {
		w := it.Rating.Weight() * RecencyWeight(i, len(usable))
		if w == 0 {
			continue
		}
		total += w
		for j, x := range it.Vector {
			sum[j] += w * x
		}
	}
	if total == 0 {
		return nil, false
	}

	for j := range sum {
		sum[j] /= total
	}
	return facet.Normalize(sum)
}

// usableInteractions drops entries without a vector and entries whose
// dimension disagrees with the first usable one
func usableInteractions(history []Interaction) []Interaction {
	out := make([]Interaction, 0, len(history))
	dim := -1
	for _, it := range history {
		if len(it.Vector) == 0 {
			continue
		}
		if dim < 0 {
			dim = len(it.Vector)
		}
		if len(it.Vector) != dim {
			continue
		}
		out = append(out, it)
	}
	return out
}
