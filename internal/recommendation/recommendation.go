package recommendation

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrNotFound is returned when no recommendations were stored for the user yet
var ErrNotFound = errors.New("recommendations not found")

// UserRecommendation is the precomputed, ordered recommendation list of a user
type UserRecommendation struct {
	UserID    uuid.UUID                  `json:"user_id" gorm:"type:uuid;primaryKey"`
	ShowIDs   datatypes.JSONSlice[int64] `json:"show_ids" gorm:"type:jsonb;not null"`
	UpdatedAt time.Time                  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (UserRecommendation) TableName() string {
	return "user_recommendations"
}

// Repository persists recommendation lists
type Repository interface {
	// Save inserts or replaces the user's list
	Save(rec *UserRecommendation) error
	FindByUser(userID uuid.UUID) (*UserRecommendation, error)
}

// HistorySource returns a user's interactions ordered oldest to newest, with
// each watched show's main vector resolved
type HistorySource interface {
	History(ctx context.Context, userID uuid.UUID) ([]personalization.Interaction, error)
}

// ShowLister hydrates show IDs for responses
type ShowLister interface {
	GetShows(ids []int64) ([]*catalog.Show, error)
}

// Service defines the interface for recommendation business logic
type Service interface {
	// Refresh recomputes and stores the user's list
	Refresh(ctx context.Context, userID uuid.UUID) ([]int64, error)
	// TriggerRefresh schedules Refresh in the background
	TriggerRefresh(userID uuid.UUID)
	GetRecommendations(userID uuid.UUID, limit int) (*RecommendationResponse, error)
	UserVector(ctx context.Context, userID uuid.UUID) (facet.Vector, bool, error)
	// Wait blocks until background refreshes finish
	Wait()
}

// RecommendedShow is one entry of a recommendation response
type RecommendedShow struct {
	Rank int           `json:"rank"`
	Show *catalog.Show `json:"show"`
}

// RecommendationResponse is returned by the recommendation endpoints
type RecommendationResponse struct {
	Recommendations []*RecommendedShow `json:"recommendations"`
	GeneratedAt     time.Time          `json:"generated_at"`
	UserID          uuid.UUID          `json:"user_id"`
	Count           int                `json:"count"`
}

// BuildRecommendationResponse numbers shows in order, starting at 1
func BuildRecommendationResponse(shows []*catalog.Show, userID uuid.UUID, generatedAt time.Time) *RecommendationResponse {
	recs := make([]*RecommendedShow, 0, len(shows))
	for i, show := range shows {
		recs = append(recs, &RecommendedShow{Rank: i + 1, Show: show})
	}
	return &RecommendationResponse{
		Recommendations: recs,
		GeneratedAt:     generatedAt,
		UserID:          userID,
		Count:           len(recs),
	}
}
