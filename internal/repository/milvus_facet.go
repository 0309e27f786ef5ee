package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/showfinder/config"
	catalogPkg "github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/pkg/logger"
	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	defaultCollectionPrefix = "shows"
	milvusIDField           = "id"
	milvusVectorField       = "vector"
)

// MilvusSearcher is the subset of the Milvus client the facet store needs
type MilvusSearcher interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam,
		opts ...mclient.SearchQueryOptionFunc) ([]mclient.SearchResult, error)
	Query(ctx context.Context, collectionName string, partitionNames []string, expr string, outputFields []string,
		opts ...mclient.SearchQueryOptionFunc) (mclient.ResultSet, error)
}

// milvusFacetStore implements catalog.FacetStore with one Milvus collection per
// facet. A show is present in a collection only when it has that facet vector.
type milvusFacetStore struct {
	client MilvusSearcher
	prefix string
	logger *logger.Logger
}

// NewMilvusFacetStore connects to Milvus and loads every facet collection
func NewMilvusFacetStore(ctx context.Context, cfg *config.StoreConfig, log *logger.Logger) (catalogPkg.FacetStore, func() error, error) {
	addr := strings.TrimSpace(cfg.MilvusAddress)
	if addr == "" {
		return nil, nil, errors.New("milvus address is empty")
	}

	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(cfg.MilvusUsername),
		Password: strings.TrimSpace(cfg.MilvusPassword),
		DBName:   strings.TrimSpace(cfg.MilvusDBName),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	store := NewMilvusFacetStoreWithClient(cli, cfg.CollectionPrefix, log)
	for _, f := range facet.All {
		name := store.collection(f)
		if err := cli.LoadCollection(ctx, name, false); err != nil {
			_ = cli.Close()
			return nil, nil, fmt.Errorf("failed to load collection %s: %w", name, err)
		}
	}

	return store, cli.Close, nil
}

// NewMilvusFacetStoreWithClient wraps an existing client
func NewMilvusFacetStoreWithClient(cli MilvusSearcher, prefix string, log *logger.Logger) *milvusFacetStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCollectionPrefix
	}
	return &milvusFacetStore{
		client: cli,
		prefix: prefix,
		logger: log.WithComponent("milvus-facet-store"),
	}
}

func (s *milvusFacetStore) collection(f facet.Facet) string {
	return s.prefix + "_" + f.String()
}

// NearestByFacet supports RequireFacet only for the searched facet, which the
// per-facet collection layout satisfies implicitly. Equal distances are ordered
// by ID only among the k hits Milvus returns, so a lower-ID show tied with the
// k-th hit but ranked past k by Milvus is dropped.
func (s *milvusFacetStore) NearestByFacet(ctx context.Context, f facet.Facet, v facet.Vector, filter catalogPkg.Filter, k int) ([]catalogPkg.Neighbor, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown facet %q", f)
	}
	if filter.RequireFacet != "" && filter.RequireFacet != f {
		return nil, fmt.Errorf("milvus store cannot require facet %s while searching %s", filter.RequireFacet, f)
	}
	if k <= 0 || len(v) == 0 {
		return []catalogPkg.Neighbor{}, nil
	}

	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}

	expr := ""
	if len(filter.ExcludeIDs) > 0 {
		expr = milvusIDField + " not in " + int64List(filter.ExcludeIDs)
	}

	res, err := s.client.Search(ctx, s.collection(f), nil, expr, []string{milvusIDField},
		[]entity.Vector{toFloat32(v)}, milvusVectorField, entity.COSINE, k, sp)
	if err != nil {
		s.logger.Error("Milvus search on " + s.collection(f) + " failed: " + err.Error())
		return nil, fmt.Errorf("vector similarity search error: %w", err)
	}

	neighbors := []catalogPkg.Neighbor{}
	if len(res) > 0 {
		sr := res[0]
		if sr.Err != nil {
			return nil, sr.Err
		}
		for i := 0; i < sr.ResultCount; i++ {
			id, err := sr.IDs.GetAsInt64(i)
			if err != nil {
				return nil, fmt.Errorf("unexpected milvus id: %w", err)
			}
			// COSINE scores are similarities
			neighbors = append(neighbors, catalogPkg.Neighbor{
				ShowID:   id,
				Distance: facet.Of(1 - float64(sr.Scores[i])).Resolve(),
			})
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ShowID < neighbors[j].ShowID
	})
	return neighbors, nil
}

// DistancesForItems fetches the stored vectors facet by facet and measures
// them locally
func (s *milvusFacetStore) DistancesForItems(ctx context.Context, ids []int64, bundle facet.Bundle) (map[int64]facet.Distances, error) {
	out := make(map[int64]facet.Distances, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = facet.NewDistances()
	}

	expr := milvusIDField + " in " + int64List(ids)
	for _, f := range facet.All {
		if !bundle.Has(f) {
			continue
		}

		rs, err := s.client.Query(ctx, s.collection(f), nil, expr, []string{milvusIDField, milvusVectorField})
		if err != nil {
			s.logger.Error("Milvus query on " + s.collection(f) + " failed: " + err.Error())
			return nil, fmt.Errorf("facet distance query error: %w", err)
		}

		idCol := rs.GetColumn(milvusIDField)
		vecCol, ok := rs.GetColumn(milvusVectorField).(*entity.ColumnFloatVector)
		if idCol == nil || !ok {
			return nil, fmt.Errorf("milvus collection %s returned no vectors", s.collection(f))
		}

		vectors := vecCol.Data()
		for i := 0; i < idCol.Len() && i < len(vectors); i++ {
			id, err := idCol.GetAsInt64(i)
			if err != nil {
				return nil, fmt.Errorf("unexpected milvus id: %w", err)
			}
			d, requested := out[id]
			if !requested {
				continue
			}
			d.Set(f, facet.CosineDistance(bundle[f], toFloat64(vectors[i])))
			out[id] = d
		}
	}

	return out, nil
}

func int64List(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func toFloat32(v facet.Vector) entity.FloatVector {
	out := make(entity.FloatVector, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) facet.Vector {
	out := make(facet.Vector, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
