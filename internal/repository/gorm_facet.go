package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	catalogPkg "github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/pkg/logger"
	"gorm.io/gorm"
)

// gormFacetStore implements catalog.FacetStore on pgvector columns. The <=>
// operator is cosine distance, matching the unit vectors stored per facet.
type gormFacetStore struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMFacetStore creates a pgvector-backed facet store
func NewGORMFacetStore(db *gorm.DB, log *logger.Logger) catalogPkg.FacetStore {
	return &gormFacetStore{
		db:     db,
		logger: log.WithComponent("gorm-facet-store"),
	}
}

func (s *gormFacetStore) NearestByFacet(ctx context.Context, f facet.Facet, v facet.Vector, filter catalogPkg.Filter, k int) ([]catalogPkg.Neighbor, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown facet %q", f)
	}
	if k <= 0 || len(v) == 0 {
		return []catalogPkg.Neighbor{}, nil
	}

	distance := fmt.Sprintf("COALESCE(%s <=> ?::vector, %.1f)", catalogPkg.Column(f), facet.MaxDistance)
	query := s.db.WithContext(ctx).
		Model(&catalogPkg.Show{}).
		Select("id AS show_id, "+distance+" AS distance", catalogPkg.FormatVector(v))

	if filter.RequireFacet != "" {
		if !filter.RequireFacet.Valid() {
			return nil, fmt.Errorf("unknown facet %q", filter.RequireFacet)
		}
		query = query.Where(catalogPkg.Column(filter.RequireFacet) + " IS NOT NULL")
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var rows []struct {
		ShowID   int64
		Distance float64
	}
	if err := query.Order("distance ASC, id ASC").Limit(k).Scan(&rows).Error; err != nil {
		s.logger.Error("Nearest neighbour query on " + f.String() + " failed: " + err.Error())
		return nil, fmt.Errorf("vector similarity search error: %w", err)
	}

	neighbors := make([]catalogPkg.Neighbor, 0, len(rows))
	for _, row := range rows {
		neighbors = append(neighbors, catalogPkg.Neighbor{
			ShowID:   row.ShowID,
			Distance: facet.Of(row.Distance).Resolve(),
		})
	}
	return neighbors, nil
}

// DistancesForItems computes every bundled facet in one round trip. NULL
// columns and shows missing from the table come back absent.
func (s *gormFacetStore) DistancesForItems(ctx context.Context, ids []int64, bundle facet.Bundle) (map[int64]facet.Distances, error) {
	out := make(map[int64]facet.Distances, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = facet.NewDistances()
	}

	columns := []string{"id"}
	args := make([]interface{}, 0, facet.Count)
	active := make([]facet.Facet, 0, facet.Count)
	for _, f := range facet.All {
		if !bundle.Has(f) {
			continue
		}
		columns = append(columns, fmt.Sprintf("%s <=> ?::vector", catalogPkg.Column(f)))
		args = append(args, catalogPkg.FormatVector(bundle[f]))
		active = append(active, f)
	}
	if len(active) == 0 {
		return out, nil
	}

	rows, err := s.db.WithContext(ctx).
		Model(&catalogPkg.Show{}).
		Select(strings.Join(columns, ", "), args...).
		Where("id IN ?", ids).
		Rows()
	if err != nil {
		s.logger.Error("Facet distance query failed: " + err.Error())
		return nil, fmt.Errorf("facet distance query error: %w", err)
	}
	defer rows.Close()

	values := make([]sql.NullFloat64, len(active))
	dest := make([]interface{}, 0, len(active)+1)
	var id int64
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("facet distance scan error: %w", err)
		}
		d := facet.NewDistances()
		for i, f := range active {
			if values[i].Valid {
				d.Set(f, values[i].Float64)
			}
		}
		out[id] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facet distance scan error: %w", err)
	}

	return out, nil
}
