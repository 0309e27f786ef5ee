package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/metrics"
	"github.com/dustin/showfinder/internal/query"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event describes one completed search
type Event struct {
	UserID       *uuid.UUID           `json:"user_id,omitempty"`
	Query        string               `json:"query"`
	TopK         int                  `json:"top_k"`
	ResultIDs    []int64              `json:"result_ids"`
	Structured   query.Interpretation `json:"structured"`
	Alpha        float64              `json:"alpha"`
	Candidates   []int64              `json:"candidates"`
	WeightsUsed  facet.Weights        `json:"weights_used"`
	Personalized bool                 `json:"personalized"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Writer persists events somewhere. Implementations may block and fail;
// Recorder shields callers from both.
type Writer interface {
	Name() string
	Write(ctx context.Context, event Event) error
}

// Recorder fans events out to writers in the background. Record never blocks
// on a writer and never reports an error to the caller.
type Recorder struct {
	writers []Writer
	timeout time.Duration
	logger  *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder with validation and defaults
func NewRecorder(cfg *config.AuditConfig, writers []Writer, log *logger.Logger) (*Recorder, error) {
	timeout := 5 * time.Second
	if cfg != nil && cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid audit timeout '%s': %v", cfg.Timeout, err)
		}
		timeout = d
	}

	return &Recorder{
		writers: writers,
		timeout: timeout,
		logger:  log.WithComponent("audit-recorder"),
	}, nil
}

// Record hands the event to every writer on a background goroutine
func (r *Recorder) Record(event Event) {
	if len(r.writers) == 0 {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Dropping audit event after shutdown for query: " + event.Query)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		for _, w := range r.writers {
			r.write(w, event)
		}
	}()
}

func (r *Recorder) write(w Writer, event Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.AuditFailures.WithLabelValues(w.Name()).Inc()
			r.logger.Error(fmt.Sprintf("Audit writer %s panicked: %v", w.Name(), p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := w.Write(ctx, event); err != nil {
		metrics.AuditFailures.WithLabelValues(w.Name()).Inc()
		r.logger.Error("Failed to write audit event to " + w.Name() + ": " + err.Error())
	}
}

// Close stops accepting events and waits for in-flight writes
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
}

// LogWriter writes events to the application log
type LogWriter struct {
	logger *logger.Logger
}

// NewLogWriter creates a writer backed by the structured logger
func NewLogWriter(log *logger.Logger) *LogWriter {
	return &LogWriter{logger: log.WithComponent("search-audit")}
}

func (w *LogWriter) Name() string {
	return "log"
}

func (w *LogWriter) Write(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	w.logger.Info("Search completed: " + string(payload))
	return nil
}

// QueryLog is the persisted form of an Event
type QueryLog struct {
	ID        uint                       `json:"id" gorm:"primaryKey"`
	UserID    *uuid.UUID                 `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Query     string                     `json:"query" gorm:"type:text;not null"`
	TopK      int                        `json:"top_k"`
	ResultIDs datatypes.JSONSlice[int64] `json:"result_ids" gorm:"type:jsonb"`
	Metadata  datatypes.JSON             `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time                  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (QueryLog) TableName() string {
	return "user_query_logs"
}

type queryLogMetadata struct {
	Structured   query.Interpretation `json:"structured"`
	Alpha        float64              `json:"alpha"`
	Candidates   []int64              `json:"candidates"`
	WeightsUsed  facet.Weights        `json:"weights_used"`
	Personalized bool                 `json:"personalized"`
}

// NewQueryLog converts an event into its table row
func NewQueryLog(event Event) (*QueryLog, error) {
	meta, err := json.Marshal(queryLogMetadata{
		Structured:   event.Structured,
		Alpha:        event.Alpha,
		Candidates:   event.Candidates,
		WeightsUsed:  event.WeightsUsed,
		Personalized: event.Personalized,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query log metadata: %w", err)
	}

	ids := event.ResultIDs
	if ids == nil {
		ids = []int64{}
	}

	return &QueryLog{
		UserID:    event.UserID,
		Query:     event.Query,
		TopK:      event.TopK,
		ResultIDs: datatypes.JSONSlice[int64](ids),
		Metadata:  datatypes.JSON(meta),
		CreatedAt: event.Timestamp,
	}, nil
}
