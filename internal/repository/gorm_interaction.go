package repository

import (
	"errors"
	"fmt"

	interactionPkg "github.com/dustin/showfinder/internal/interaction"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormInteractionRepository implements the interaction.Repository interface
type gormInteractionRepository struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMInteractionRepository creates a new GORM-based interaction repository
func NewGORMInteractionRepository(db *gorm.DB, log *logger.Logger) interactionPkg.Repository {
	return &gormInteractionRepository{
		db:     db,
		logger: log.WithComponent("gorm-interaction-repository"),
	}
}

func (r *gormInteractionRepository) Upsert(i *interactionPkg.Interaction) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "show_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_date", "last_date", "viewed_amount", "completion_ratio", "rating", "updated_at",
		}),
	}).Create(i).Error
	if err != nil {
		r.logger.Error(fmt.Sprintf("Failed to upsert interaction %s/%d: %v", i.UserID, i.ShowID, err))
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

func (r *gormInteractionRepository) FindByUserAndShow(userID uuid.UUID, showID int64) (*interactionPkg.Interaction, error) {
	var row interactionPkg.Interaction

	err := r.db.Where("user_id = ? AND show_id = ?", userID, showID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, interactionPkg.ErrNotFound
		}

		r.logger.Error(fmt.Sprintf("Database error finding interaction %s/%d: %v", userID, showID, err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &row, nil
}

func (r *gormInteractionRepository) FindByUser(userID uuid.UUID, page, limit int) ([]*interactionPkg.Interaction, int64, error) {
	var total int64
	if err := r.db.Model(&interactionPkg.Interaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		r.logger.Error("Database error counting interactions for user " + userID.String() + ": " + err.Error())
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	var rows []*interactionPkg.Interaction
	err := r.db.Preload("Show").
		Where("user_id = ?", userID).
		Order("last_date DESC NULLS LAST, show_id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		r.logger.Error("Database error listing interactions for user " + userID.String() + ": " + err.Error())
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	return rows, total, nil
}

func (r *gormInteractionRepository) History(userID uuid.UUID) ([]*interactionPkg.Interaction, error) {
	var rows []*interactionPkg.Interaction

	err := r.db.Where("user_id = ?", userID).
		Order("last_date ASC NULLS FIRST, show_id ASC").
		Find(&rows).Error
	if err != nil {
		r.logger.Error("Database error loading history for user " + userID.String() + ": " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return rows, nil
}

func (r *gormInteractionRepository) Delete(userID uuid.UUID, showID int64) error {
	result := r.db.Delete(&interactionPkg.Interaction{}, "user_id = ? AND show_id = ?", userID, showID)
	if err := result.Error; err != nil {
		r.logger.Error(fmt.Sprintf("Failed to delete interaction %s/%d: %v", userID, showID, err))
		return fmt.Errorf("failed to delete interaction: %w", err)
	}

	if result.RowsAffected == 0 {
		return interactionPkg.ErrNotFound
	}

	return nil
}

func (r *gormInteractionRepository) UsersWithInteractions() ([]uuid.UUID, error) {
	var ids []uuid.UUID

	err := r.db.Model(&interactionPkg.Interaction{}).Distinct("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		r.logger.Error("Database error listing active users: " + err.Error())
		return nil, fmt.Errorf("database error: %w", err)
	}

	return ids, nil
}
