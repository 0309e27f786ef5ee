package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/dustin/showfinder/internal/facet"
)

// MemoryStore is an exhaustive in-process FacetStore for development and tests
type MemoryStore struct {
	mu    sync.RWMutex
	shows map[int64]map[facet.Facet]facet.Vector
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shows: make(map[int64]map[facet.Facet]facet.Vector)}
}

// Put stores the facet vectors of one show, replacing earlier ones
func (m *MemoryStore) Put(id int64, vectors map[facet.Facet]facet.Vector) {
	copied := make(map[facet.Facet]facet.Vector, len(vectors))
	for f, v := range vectors {
		if len(v) > 0 {
			copied[f] = v.Clone()
		}
	}

	m.mu.Lock()
	m.shows[id] = copied
	m.mu.Unlock()
}

// PutShow stores every facet vector carried by s
func (m *MemoryStore) PutShow(s *Show) {
	vectors := make(map[facet.Facet]facet.Vector, facet.Count)
	for _, f := range facet.All {
		if v := s.Vector(f); v != nil {
			vectors[f] = v
		}
	}
	m.Put(s.ID, vectors)
}

// Len returns the number of stored shows
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shows)
}

func (m *MemoryStore) NearestByFacet(ctx context.Context, f facet.Facet, v facet.Vector, filter Filter, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(v) == 0 {
		return []Neighbor{}, nil
	}

	m.mu.RLock()
	hits := make([]Neighbor, 0, len(m.shows))
	for id, vectors := range m.shows {
		if filter.Excludes(id) {
			continue
		}
		if filter.RequireFacet != "" {
			if _, ok := vectors[filter.RequireFacet]; !ok {
				continue
			}
		}

		d := facet.MaxDistance
		if stored, ok := vectors[f]; ok {
			d = facet.CosineDistance(v, stored)
		}
		hits = append(hits, Neighbor{ShowID: id, Distance: d})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ShowID < hits[j].ShowID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) DistancesForItems(ctx context.Context, ids []int64, bundle facet.Bundle) (map[int64]facet.Distances, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]facet.Distances, len(ids))
	for _, id := range ids {
		d := facet.NewDistances()
		vectors := m.shows[id]
		for _, f := range facet.All {
			stored, ok := vectors[f]
			if !ok || !bundle.Has(f) {
				d.SetAbsent(f)
				continue
			}
			d.Set(f, facet.CosineDistance(bundle[f], stored))
		}
		out[id] = d
	}
	return out, nil
}
