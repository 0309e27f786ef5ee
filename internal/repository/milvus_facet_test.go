package repository

import (
	"context"
	"errors"
	"testing"

	catalogPkg "github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/pkg/logger"
	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMilvus struct {
	searchIDs    []int64
	searchScores []float32
	searchErr    error

	// collection name -> id -> vector
	vectors map[string]map[int64][]float32
	queried []string

	lastCollection string
	lastExpr       string
}

func (s *stubMilvus) Search(_ context.Context, collName string, _ []string, expr string, _ []string,
	_ []entity.Vector, _ string, _ entity.MetricType, _ int, _ entity.SearchParam,
	_ ...mclient.SearchQueryOptionFunc) ([]mclient.SearchResult, error) {
	s.lastCollection = collName
	s.lastExpr = expr
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []mclient.SearchResult{{
		ResultCount: len(s.searchIDs),
		IDs:         entity.NewColumnInt64("id", s.searchIDs),
		Scores:      s.searchScores,
	}}, nil
}

func (s *stubMilvus) Query(_ context.Context, collectionName string, _ []string, _ string, _ []string,
	_ ...mclient.SearchQueryOptionFunc) (mclient.ResultSet, error) {
	s.queried = append(s.queried, collectionName)
	var ids []int64
	var vecs [][]float32
	for id, v := range s.vectors[collectionName] {
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	return mclient.ResultSet{
		entity.NewColumnInt64("id", ids),
		entity.NewColumnFloatVector("vector", 2, vecs),
	}, nil
}

func TestMilvusFacetStore_NearestByFacet(t *testing.T) {
	t.Run("converts similarity to distance and orders ties by id", func(t *testing.T) {
		cli := &stubMilvus{searchIDs: []int64{9, 4, 2}, searchScores: []float32{1, 0.5, 0.5}}
		store := NewMilvusFacetStoreWithClient(cli, "", logger.Nop())

		filter := catalogPkg.HasFacet(facet.Main)
		filter.ExcludeIDs = []int64{1, 3}
		got, err := store.NearestByFacet(context.Background(), facet.Main, facet.Vector{1, 0}, filter, 3)
		require.NoError(t, err)

		assert.Equal(t, "shows_main", cli.lastCollection)
		assert.Equal(t, "id not in [1,3]", cli.lastExpr)
		require.Len(t, got, 3)
		assert.Equal(t, []int64{9, 2, 4}, []int64{got[0].ShowID, got[1].ShowID, got[2].ShowID})
		assert.InDelta(t, 0.0, got[0].Distance, 1e-6)
		assert.InDelta(t, 0.5, got[1].Distance, 1e-6)
	})

	t.Run("other required facet is rejected", func(t *testing.T) {
		store := NewMilvusFacetStoreWithClient(&stubMilvus{}, "catalog", logger.Nop())
		_, err := store.NearestByFacet(context.Background(), facet.Plot, facet.Vector{1, 0}, catalogPkg.HasFacet(facet.Main), 3)
		assert.Error(t, err)
	})

	t.Run("search error", func(t *testing.T) {
		store := NewMilvusFacetStoreWithClient(&stubMilvus{searchErr: errors.New("unavailable")}, "", logger.Nop())
		_, err := store.NearestByFacet(context.Background(), facet.Main, facet.Vector{1, 0}, catalogPkg.Filter{}, 3)
		assert.ErrorContains(t, err, "unavailable")
	})

	t.Run("empty vector", func(t *testing.T) {
		cli := &stubMilvus{}
		store := NewMilvusFacetStoreWithClient(cli, "", logger.Nop())
		got, err := store.NearestByFacet(context.Background(), facet.Main, nil, catalogPkg.Filter{}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, cli.lastCollection)
	})
}

func TestMilvusFacetStore_DistancesForItems(t *testing.T) {
	cli := &stubMilvus{vectors: map[string]map[int64][]float32{
		"shows_main": {1: {1, 0}, 2: {0, 1}},
		"shows_tone": {2: {1, 0}},
	}}
	store := NewMilvusFacetStoreWithClient(cli, "", logger.Nop())

	bundle := facet.Bundle{
		facet.Main: {1, 0},
		facet.Tone: {1, 0},
	}
	got, err := store.DistancesForItems(context.Background(), []int64{1, 2, 3}, bundle)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.ElementsMatch(t, []string{"shows_main", "shows_tone"}, cli.queried)

	assert.InDelta(t, 0.0, got[1].Resolved(facet.Main), 1e-6)
	assert.False(t, got[1].Get(facet.Tone).Present)
	assert.InDelta(t, 1.0, got[2].Resolved(facet.Main), 1e-6)
	assert.InDelta(t, 0.0, got[2].Resolved(facet.Tone), 1e-6)
	assert.Equal(t, facet.MaxDistance, got[3].Resolved(facet.Main))
	assert.Equal(t, facet.MaxDistance, got[1].Resolved(facet.Plot))
}
