package breaker

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Settings parsed from config, with defaults applied
type Settings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ParseSettings validates the breaker config
func ParseSettings(cfg *config.BreakerConfig) (Settings, error) {
	s := Settings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
	if cfg == nil {
		return s, nil
	}

	if cfg.MaxRequests != "" {
		n, err := strconv.ParseUint(cfg.MaxRequests, 10, 32)
		if err != nil || n == 0 {
			return s, fmt.Errorf("invalid breaker max requests '%s'", cfg.MaxRequests)
		}
		s.MaxRequests = uint32(n)
	}
	if cfg.FailureThreshold != "" {
		n, err := strconv.ParseUint(cfg.FailureThreshold, 10, 32)
		if err != nil || n == 0 {
			return s, fmt.Errorf("invalid breaker failure threshold '%s'", cfg.FailureThreshold)
		}
		s.FailureThreshold = uint32(n)
	}
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return s, fmt.Errorf("invalid breaker interval '%s': %v", cfg.Interval, err)
		}
		s.Interval = d
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return s, fmt.Errorf("invalid breaker timeout '%s': %v", cfg.Timeout, err)
		}
		s.Timeout = d
	}
	return s, nil
}

// New creates a named circuit breaker that trips after consecutive failures
func New[T any](name string, s Settings, log *logger.Logger) *gobreaker.CircuitBreaker[T] {
	l := log.WithComponent("circuit-breaker")
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("Breaker " + name + " changed from " + from.String() + " to " + to.String())
		},
	})
}

// IsOpen reports whether err was produced by a breaker rejecting the call
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
