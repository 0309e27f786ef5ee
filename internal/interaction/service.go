package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repo    Repository
	shows   ShowChecker
	refresh RefreshTrigger
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a new interaction service; refresh may be nil
func NewService(repo Repository, shows ShowChecker, refresh RefreshTrigger, log *logger.Logger) Service {
	return &service{
		repo:    repo,
		shows:   shows,
		refresh: refresh,
		logger:  log.WithComponent("interaction-service"),
		now:     time.Now,
	}
}

func (s *service) Record(userID uuid.UUID, showID int64, req RecordRequest) (*Interaction, error) {
	s.logger.Info(fmt.Sprintf("Recording interaction with show %d by user %s", showID, userID))

	if _, err := s.shows.GetShow(showID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
		s.logger.Error(fmt.Sprintf("Failed to verify show %d: %v", showID, err))
		return nil, err
	}

	existing, err := s.repo.FindByUserAndShow(userID, showID)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = &Interaction{UserID: userID, ShowID: showID}
	case err != nil:
		s.logger.Error(fmt.Sprintf("Failed to load interaction with show %d for user %s: %v", showID, userID, err))
		return nil, err
	}

	viewedAt := s.now().UTC()
	if req.ViewedAt != nil {
		viewedAt = req.ViewedAt.UTC()
	}
	if existing.FirstDate == nil || viewedAt.Before(*existing.FirstDate) {
		existing.FirstDate = &viewedAt
	}
	if existing.LastDate == nil || viewedAt.After(*existing.LastDate) {
		existing.LastDate = &viewedAt
	}

	if req.Rating != nil {
		existing.Rating = *req.Rating
	}
	if req.ViewedAmount != nil {
		existing.ViewedAmount = req.ViewedAmount
	}
	if req.CompletionRatio != nil {
		existing.CompletionRatio = req.CompletionRatio
	}

	if err := existing.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(existing); err != nil {
		s.logger.Error(fmt.Sprintf("Failed to save interaction with show %d for user %s: %v", showID, userID, err))
		return nil, err
	}

	s.triggerRefresh(userID)
	return existing, nil
}

func (s *service) Get(userID uuid.UUID, showID int64) (*Interaction, error) {
	return s.repo.FindByUserAndShow(userID, showID)
}

func (s *service) List(userID uuid.UUID, page, limit int) ([]*Interaction, int64, error) {
	items, total, err := s.repo.FindByUser(userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list interactions for user " + userID.String() + ": " + err.Error())
		return nil, 0, err
	}
	return items, total, nil
}

func (s *service) Delete(userID uuid.UUID, showID int64) error {
	s.logger.Info(fmt.Sprintf("Deleting interaction with show %d for user %s", showID, userID))

	if err := s.repo.Delete(userID, showID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error(fmt.Sprintf("Failed to delete interaction with show %d for user %s: %v", showID, userID, err))
		}
		return err
	}

	s.triggerRefresh(userID)
	return nil
}

func (s *service) triggerRefresh(userID uuid.UUID) {
	if s.refresh != nil {
		s.refresh.TriggerRefresh(userID)
	}
}
