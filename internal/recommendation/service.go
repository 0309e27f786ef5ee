package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/metrics"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	defaultLimit   = 50
	refreshTimeout = 30 * time.Second
)

// Dependencies are the collaborators of the recommendation service
type Dependencies struct {
	Repo    Repository
	History HistorySource
	Store   catalog.FacetStore
	Shows   ShowLister
}

// service implements the Service interface
type service struct {
	repo       Repository
	history    HistorySource
	store      catalog.FacetStore
	shows      ShowLister
	aggregator *personalization.Aggregator
	limit      int
	locks      userLocks
	background sync.WaitGroup
	logger     *logger.Logger
	now        func() time.Time
}

// NewService creates a new recommendation service
func NewService(cfg *config.SearchConfig, deps Dependencies, log *logger.Logger) (Service, error) {
	if deps.Repo == nil || deps.History == nil || deps.Store == nil {
		return nil, errors.New("recommendation service requires a repository, a history source and a facet store")
	}

	minInteractions, err := optionalInt(cfg.MinInteractions, personalization.DefaultMinInteractions)
	if err != nil {
		return nil, fmt.Errorf("invalid min_interactions: %w", err)
	}
	limit, err := optionalInt(cfg.RecommendationLimit, defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid recommendation_limit: %w", err)
	}

	return &service{
		repo:       deps.Repo,
		history:    deps.History,
		store:      deps.Store,
		shows:      deps.Shows,
		aggregator: personalization.NewAggregator(minInteractions),
		limit:      limit,
		locks:      userLocks{held: map[uuid.UUID]*userLock{}},
		logger:     log.WithComponent("recommendation-service"),
		now:        time.Now,
	}, nil
}

func optionalInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", v)
	}
	return v, nil
}

func (s *service) UserVector(ctx context.Context, userID uuid.UUID) (facet.Vector, bool, error) {
	history, err := s.history.History(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load history: %w", err)
	}
	vec, ok := s.aggregator.Aggregate(history)
	return vec, ok, nil
}

// userLocks hands out one lock per user. Entries are dropped once no caller
// holds or waits on them.
type userLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]*userLock
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

// acquire blocks until the user's lock is free or ctx is done
func (l *userLocks) acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	ul, ok := l.held[userID]
	if !ok {
		ul = &userLock{sem: semaphore.NewWeighted(1)}
		l.held[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	if err := ul.sem.Acquire(ctx, 1); err != nil {
		l.drop(userID, ul)
		return nil, err
	}
	return func() {
		ul.sem.Release(1)
		l.drop(userID, ul)
	}, nil
}

func (l *userLocks) drop(userID uuid.UUID, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.held, userID)
	}
}

// Refresh runs one at a time per user. A call made while another is in
// flight waits for it and then reads the history afresh, so a refresh
// triggered by a write always sees that write.
func (s *service) Refresh(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		metrics.RecommendationRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("waiting for refresh of user %s: %w", userID, err)
	}
	defer release()

	ids, err := s.refresh(ctx, userID)
	if err != nil {
		metrics.RecommendationRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	return ids, nil
}

func (s *service) refresh(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	history, err := s.history.History(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load history for user " + userID.String() + ": " + err.Error())
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	ids := []int64{}
	vec, ok := s.aggregator.Aggregate(history)
	if ok {
		seen := make([]int64, 0, len(history))
		for _, it := range history {
			seen = append(seen, it.ShowID)
		}

		filter := catalog.HasFacet(facet.Main)
		filter.ExcludeIDs = seen
		neighbors, err := s.store.NearestByFacet(ctx, facet.Main, vec, filter, s.limit)
		if err != nil {
			s.logger.Error("Failed to find neighbours for user " + userID.String() + ": " + err.Error())
			return nil, fmt.Errorf("nearest neighbour search failed: %w", err)
		}
		for _, n := range neighbors {
			ids = append(ids, n.ShowID)
		}
	}

	if err := s.repo.Save(&UserRecommendation{UserID: userID, ShowIDs: ids, UpdatedAt: s.now()}); err != nil {
		s.logger.Error("Failed to store recommendations for user " + userID.String() + ": " + err.Error())
		return nil, err
	}

	if ok {
		metrics.RecommendationRefreshes.WithLabelValues("stored").Inc()
	} else {
		metrics.RecommendationRefreshes.WithLabelValues("cleared").Inc()
	}
	s.logger.Info(fmt.Sprintf("Refreshed recommendations for user %s: %d shows", userID, len(ids)))
	return ids, nil
}

func (s *service) TriggerRefresh(userID uuid.UUID) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(fmt.Sprintf("Recommendation refresh panicked for user %s: %v", userID, r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		// errors are logged and counted by Refresh
		_, _ = s.Refresh(ctx, userID)
	}()
}

func (s *service) Wait() {
	s.background.Wait()
}

func (s *service) GetRecommendations(userID uuid.UUID, limit int) (*RecommendationResponse, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > s.limit {
		limit = s.limit
	}

	rec, err := s.repo.FindByUser(userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to load recommendations for user " + userID.String() + ": " + err.Error())
		}
		return nil, err
	}

	ids := []int64(rec.ShowIDs)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	shows := []*catalog.Show{}
	if s.shows != nil && len(ids) > 0 {
		shows, err = s.shows.GetShows(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load shows: %w", err)
		}
	}

	return BuildRecommendationResponse(shows, userID, rec.UpdatedAt), nil
}
