package catalog

import (
	"errors"
	"fmt"

	"github.com/dustin/showfinder/pkg/logger"
)

// Service exposes read access to the catalog
type Service interface {
	GetShow(id int64) (*Show, error)
	GetShows(ids []int64) ([]*Show, error)
	ListGenres() ([]string, error)
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a catalog service
func NewService(repo Repository, log *logger.Logger) Service {
	return &service{
		repo:   repo,
		logger: log.WithComponent("catalog-service"),
	}
}

func (s *service) GetShow(id int64) (*Show, error) {
	show, err := s.repo.FindByID(id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error(fmt.Sprintf("Failed to load show %d: %v", id, err))
		}
		return nil, err
	}
	return show, nil
}

// GetShows returns shows in the order of ids, skipping unknown ones
func (s *service) GetShows(ids []int64) ([]*Show, error) {
	if len(ids) == 0 {
		return []*Show{}, nil
	}

	shows, err := s.repo.FindByIDs(ids)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to load %d shows: %v", len(ids), err))
		return nil, err
	}

	byID := make(map[int64]*Show, len(shows))
	for _, show := range shows {
		byID[show.ID] = show
	}

	ordered := make([]*Show, 0, len(ids))
	for _, id := range ids {
		if show, ok := byID[id]; ok {
			ordered = append(ordered, show)
		}
	}
	return ordered, nil
}

func (s *service) ListGenres() ([]string, error) {
	names, err := s.repo.GenreNames()
	if err != nil {
		s.logger.Error("Failed to list genres: " + err.Error())
		return nil, err
	}
	return names, nil
}
