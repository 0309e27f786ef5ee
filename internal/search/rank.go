package search

import (
	"sort"

	"github.com/dustin/showfinder/internal/facet"
)

// Rank scores every candidate, orders by weighted distance with ties broken
// by ascending show ID, and keeps the first topK. A candidate the store did
// not report on scores every facet at the maximum distance.
func Rank(candidates []int64, distances map[int64]facet.Distances, weights facet.Weights, topK int) []ScoredResult {
	seen := make(map[int64]struct{}, len(candidates))
	results := make([]ScoredResult, 0, len(candidates))

	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		d, ok := distances[id]
		if !ok {
			d = facet.NewDistances()
		}
		results = append(results, ScoredResult{
			ItemID:           id,
			Distances:        d,
			WeightedDistance: facet.WeightedDistance(weights, d),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].WeightedDistance != results[j].WeightedDistance {
			return results[i].WeightedDistance < results[j].WeightedDistance
		}
		return results[i].ItemID < results[j].ItemID
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
