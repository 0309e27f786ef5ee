package repository

import (
	"errors"
	"fmt"

	catalogPkg "github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/pkg/logger"
	"gorm.io/gorm"
)

// gormCatalogRepository implements the catalog.Repository interface
type gormCatalogRepository struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMCatalogRepository creates a new GORM-based catalog repository
func NewGORMCatalogRepository(db *gorm.DB, log *logger.Logger) catalogPkg.Repository {
	return &gormCatalogRepository{
		db:     db,
		logger: log.WithComponent("gorm-catalog-repository"),
	}
}

func (r *gormCatalogRepository) FindByID(id int64) (*catalogPkg.Show, error) {
	var show catalogPkg.Show

	err := r.db.Preload("Genres").First(&show, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogPkg.ErrNotFound
		}

		r.logger.Error(fmt.Sprintf("Database error finding show %d: %v", id, err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &show, nil
}

func (r *gormCatalogRepository) FindByIDs(ids []int64) ([]*catalogPkg.Show, error) {
	var shows []*catalogPkg.Show
	if len(ids) == 0 {
		return shows, nil
	}

	err := r.db.Preload("Genres").Where("id IN ?", ids).Find(&shows).Error
	if err != nil {
		r.logger.Error(fmt.Sprintf("Database error finding %d shows: %v", len(ids), err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	return shows, nil
}

// FindMainVectors skips shows without a main embedding
func (r *gormCatalogRepository) FindMainVectors(ids []int64) (map[int64]facet.Vector, error) {
	out := make(map[int64]facet.Vector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ID        int64
		Embedding catalogPkg.Embedding
	}
	err := r.db.Model(&catalogPkg.Show{}).
		Select("id, embedding").
		Where("id IN ?", ids).
		Where("embedding IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		r.logger.Error("Database error loading main vectors: " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	for _, row := range rows {
		if len(row.Embedding) > 0 {
			out[row.ID] = facet.Vector(row.Embedding)
		}
	}
	return out, nil
}

func (r *gormCatalogRepository) GenreNames() ([]string, error) {
	var names []string

	err := r.db.Model(&catalogPkg.Genre{}).Order("name ASC").Pluck("name", &names).Error
	if err != nil {
		r.logger.Error("Database error listing genres: " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return names, nil
}
