package repository

import (
	"errors"
	"fmt"

	recommendationPkg "github.com/dustin/showfinder/internal/recommendation"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormRecommendationRepository implements the recommendation.Repository interface
type gormRecommendationRepository struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMRecommendationRepository creates a new GORM-based recommendation repository
func NewGORMRecommendationRepository(db *gorm.DB, log *logger.Logger) recommendationPkg.Repository {
	return &gormRecommendationRepository{
		db:     db,
		logger: log.WithComponent("gorm-recommendation-repository"),
	}
}

func (r *gormRecommendationRepository) Save(rec *recommendationPkg.UserRecommendation) error {
	if rec.ShowIDs == nil {
		rec.ShowIDs = []int64{}
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"show_ids", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		r.logger.Error("Failed to store recommendations for user " + rec.UserID.String() + ": " + err.Error())
		return fmt.Errorf("failed to store recommendations: %w", err)
	}

	return nil
}

func (r *gormRecommendationRepository) FindByUser(userID uuid.UUID) (*recommendationPkg.UserRecommendation, error) {
	var rec recommendationPkg.UserRecommendation

	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recommendationPkg.ErrNotFound
		}

		r.logger.Error("Database error finding recommendations for user " + userID.String() + ": " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &rec, nil
}
