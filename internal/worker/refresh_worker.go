package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// UserLister lists users whose recommendations should be kept fresh
type UserLister interface {
	UsersWithInteractions() ([]uuid.UUID, error)
}

// Refresher recomputes one user's recommendations
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) ([]int64, error)
}

// RunStats summarizes one pass over all users
type RunStats struct {
	Users     int
	Refreshed int
	Failed    int
}

// RefreshWorker periodically refreshes recommendations for every user with
// interactions. Refreshes are throttled so a pass never floods the store.
type RefreshWorker struct {
	cron            *cron.Cron
	users           UserLister
	refresher       Refresher
	refreshInterval time.Duration
	limiter         *rate.Limiter
	logger          *logger.Logger
	entryID         cron.EntryID

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewRefreshWorker creates a cron-scheduled worker with validation and defaults
func NewRefreshWorker(cfg *config.WorkerConfig, users UserLister, refresher Refresher, log *logger.Logger) (*RefreshWorker, error) {
	refreshInterval := time.Hour
	if cfg != nil && cfg.RefreshInterval != "" {
		duration, err := time.ParseDuration(cfg.RefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh interval '%s': %w", cfg.RefreshInterval, err)
		}
		if duration < time.Minute {
			return nil, fmt.Errorf("invalid refresh interval '%s': must be at least 1m", cfg.RefreshInterval)
		}
		refreshInterval = duration
	}

	perSecond := 5.0
	if cfg != nil && cfg.RefreshRate != "" {
		v, err := strconv.ParseFloat(cfg.RefreshRate, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid refresh rate '%s'", cfg.RefreshRate)
		}
		perSecond = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshWorker{
		cron:            cron.New(),
		users:           users,
		refresher:       refresher,
		refreshInterval: refreshInterval,
		limiter:         rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:          log.WithComponent("refresh-worker"),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// Start schedules and begins the refresh worker
func (w *RefreshWorker) Start() error {
	spec := "@every " + w.refreshInterval.String()
	w.logger.Info(fmt.Sprintf("Starting recommendation refresh worker (every %v)", w.refreshInterval))

	entryID, err := w.cron.AddFunc(spec, func() {
		stats, err := w.RunOnce(w.ctx)
		if err != nil {
			w.logger.Error("Recommendation refresh pass failed: " + err.Error())
			return
		}
		w.logger.Info(fmt.Sprintf("Recommendation refresh pass done: %d users, %d refreshed, %d failed",
			stats.Users, stats.Refreshed, stats.Failed))
	})
	if err != nil {
		w.logger.Error("Failed to schedule refresh worker: " + err.Error())
		return err
	}

	w.entryID = entryID
	w.cron.Start()
	return nil
}

// RunOnce refreshes every user once. A pass already in progress makes this
// call a no-op; individual failures are counted, not returned.
func (w *RefreshWorker) RunOnce(ctx context.Context) (RunStats, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("Skipping refresh pass, previous pass still running")
		return RunStats{}, nil
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	users, err := w.users.UsersWithInteractions()
	if err != nil {
		return RunStats{}, fmt.Errorf("failed to list users: %w", err)
	}

	stats := RunStats{Users: len(users)}
	for _, userID := range users {
		if err := w.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if _, err := w.refresher.Refresh(ctx, userID); err != nil {
			stats.Failed++
			w.logger.Warn("Refresh failed for user " + userID.String() + ": " + err.Error())
			continue
		}
		stats.Refreshed++
	}
	return stats, nil
}

// Stop cancels an in-flight pass and waits for the scheduler to drain
func (w *RefreshWorker) Stop() error {
	w.logger.Info("Stopping recommendation refresh worker")

	if w.entryID > 0 {
		w.cron.Remove(w.entryID)
	}
	w.cancel()

	ctx := w.cron.Stop()
	<-ctx.Done()

	w.logger.Info("Recommendation refresh worker stopped")
	return nil
}

// IsRunning checks if the worker has active cron entries
func (w *RefreshWorker) IsRunning() bool {
	return len(w.cron.Entries()) > 0
}
