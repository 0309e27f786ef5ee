package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	ids []uuid.UUID
	err error
}

func (s stubUsers) UsersWithInteractions() ([]uuid.UUID, error) {
	return s.ids, s.err
}

type stubRefresher struct {
	mu      sync.Mutex
	calls   []uuid.UUID
	failFor map[uuid.UUID]bool
	block   chan struct{}
}

func (s *stubRefresher) Refresh(_ context.Context, userID uuid.UUID) ([]int64, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	if s.failFor[userID] {
		return nil, errors.New("refresh failed")
	}
	return []int64{1}, nil
}

func fastConfig() *config.WorkerConfig {
	return &config.WorkerConfig{RefreshInterval: "5m", RefreshRate: "1000"}
}

func TestNewRefreshWorker(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		worker, err := NewRefreshWorker(&config.WorkerConfig{}, stubUsers{}, &stubRefresher{}, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, time.Hour, worker.refreshInterval)
		assert.Equal(t, 5.0, float64(worker.limiter.Limit()))
	})

	t.Run("configured", func(t *testing.T) {
		worker, err := NewRefreshWorker(fastConfig(), stubUsers{}, &stubRefresher{}, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, worker.refreshInterval)
	})

	testCases := []struct {
		name string
		cfg  config.WorkerConfig
		want string
	}{
		{"bad interval", config.WorkerConfig{RefreshInterval: "soon"}, "invalid refresh interval"},
		{"interval too short", config.WorkerConfig{RefreshInterval: "10s"}, "at least 1m"},
		{"bad rate", config.WorkerConfig{RefreshRate: "fast"}, "invalid refresh rate"},
		{"zero rate", config.WorkerConfig{RefreshRate: "0"}, "invalid refresh rate"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRefreshWorker(&tc.cfg, stubUsers{}, &stubRefresher{}, logger.Nop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRefreshWorker_RunOnce(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	t.Run("counts refreshed and failed users", func(t *testing.T) {
		refresher := &stubRefresher{failFor: map[uuid.UUID]bool{b: true}}
		worker, err := NewRefreshWorker(fastConfig(), stubUsers{ids: []uuid.UUID{a, b, c}}, refresher, logger.Nop())
		require.NoError(t, err)

		stats, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, RunStats{Users: 3, Refreshed: 2, Failed: 1}, stats)
		assert.Equal(t, []uuid.UUID{a, b, c}, refresher.calls)
	})

	t.Run("listing failure", func(t *testing.T) {
		worker, err := NewRefreshWorker(fastConfig(), stubUsers{err: errors.New("db down")}, &stubRefresher{}, logger.Nop())
		require.NoError(t, err)

		_, err = worker.RunOnce(context.Background())
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("cancelled context stops the pass", func(t *testing.T) {
		refresher := &stubRefresher{}
		worker, err := NewRefreshWorker(fastConfig(), stubUsers{ids: []uuid.UUID{a, b}}, refresher, logger.Nop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = worker.RunOnce(ctx)
		assert.Error(t, err)
		assert.Empty(t, refresher.calls)
	})

	t.Run("overlapping pass is skipped", func(t *testing.T) {
		refresher := &stubRefresher{block: make(chan struct{})}
		worker, err := NewRefreshWorker(fastConfig(), stubUsers{ids: []uuid.UUID{a}}, refresher, logger.Nop())
		require.NoError(t, err)

		done := make(chan RunStats)
		go func() {
			stats, _ := worker.RunOnce(context.Background())
			done <- stats
		}()

		require.Eventually(t, func() bool {
			worker.mu.Lock()
			defer worker.mu.Unlock()
			return worker.running
		}, time.Second, 5*time.Millisecond)

		stats, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, RunStats{}, stats)

		close(refresher.block)
		assert.Equal(t, 1, (<-done).Refreshed)
	})
}

func TestRefreshWorker_StartStop(t *testing.T) {
	worker, err := NewRefreshWorker(fastConfig(), stubUsers{}, &stubRefresher{}, logger.Nop())
	require.NoError(t, err)

	assert.False(t, worker.IsRunning())

	require.NoError(t, worker.Start())
	assert.True(t, worker.IsRunning())

	require.NoError(t, worker.Stop())
	assert.False(t, worker.IsRunning())
	assert.Error(t, worker.ctx.Err())
}
