package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the user has no interaction with the show
	ErrNotFound = errors.New("interaction not found")
	// ErrInvalid wraps field validation failures
	ErrInvalid = errors.New("invalid interaction")
)

// Interaction is one user's viewing record for one show. Rating uses the
// scale -1 (strong negative), 0 (unrated), 1 (positive), 2 (strong positive).
type Interaction struct {
	UserID          uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey;not null;index:idx_user_interactions"`
	ShowID          int64      `json:"show_id" gorm:"primaryKey;not null;index:idx_show_interactions"`
	FirstDate       *time.Time `json:"first_date,omitempty"`
	LastDate        *time.Time `json:"last_date,omitempty" gorm:"index"`
	ViewedAmount    *int       `json:"viewed_amount,omitempty"`
	CompletionRatio *float64   `json:"completion_ratio,omitempty"`
	Rating          int        `json:"rating" gorm:"not null;default:0;check:rating >= -1 AND rating <= 2"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Show *catalog.Show `json:"show,omitempty" gorm:"foreignKey:ShowID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (Interaction) TableName() string {
	return "user_view_interactions"
}

// Level returns the rating as a personalization level
func (i *Interaction) Level() personalization.Rating {
	return personalization.Rating(i.Rating)
}

// Validate checks field ranges
func (i *Interaction) Validate() error {
	if !i.Level().Valid() {
		return fmt.Errorf("%w: rating must be between -1 and 2, got %d", ErrInvalid, i.Rating)
	}
	if i.CompletionRatio != nil && (*i.CompletionRatio < 0 || *i.CompletionRatio > 1) {
		return fmt.Errorf("%w: completion ratio must be between 0 and 1", ErrInvalid)
	}
	if i.ViewedAmount != nil && *i.ViewedAmount < 0 {
		return fmt.Errorf("%w: viewed amount must not be negative", ErrInvalid)
	}
	if i.FirstDate != nil && i.LastDate != nil && i.LastDate.Before(*i.FirstDate) {
		return fmt.Errorf("%w: last date is before first date", ErrInvalid)
	}
	return nil
}

// Repository defines the interface for interaction data access
type Repository interface {
	Upsert(i *Interaction) error
	FindByUserAndShow(userID uuid.UUID, showID int64) (*Interaction, error)
	FindByUser(userID uuid.UUID, page, limit int) ([]*Interaction, int64, error)
	// History returns every interaction of the user ordered oldest to newest
	// by last date
	History(userID uuid.UUID) ([]*Interaction, error)
	Delete(userID uuid.UUID, showID int64) error
	UsersWithInteractions() ([]uuid.UUID, error)
}

// ShowChecker verifies that a show exists
type ShowChecker interface {
	GetShow(id int64) (*catalog.Show, error)
}

// RefreshTrigger schedules a recommendation refresh; it must not block
type RefreshTrigger interface {
	TriggerRefresh(userID uuid.UUID)
}

// Service defines the interface for interaction business logic
type Service interface {
	Record(userID uuid.UUID, showID int64, req RecordRequest) (*Interaction, error)
	Get(userID uuid.UUID, showID int64) (*Interaction, error)
	List(userID uuid.UUID, page, limit int) ([]*Interaction, int64, error)
	Delete(userID uuid.UUID, showID int64) error
}

// RecordRequest updates an interaction; nil fields keep their stored value
type RecordRequest struct {
	Rating          *int       `json:"rating" binding:"omitempty,min=-1,max=2"`
	ViewedAmount    *int       `json:"viewed_amount" binding:"omitempty,min=0"`
	CompletionRatio *float64   `json:"completion_ratio" binding:"omitempty,min=0,max=1"`
	ViewedAt        *time.Time `json:"viewed_at"`
}
