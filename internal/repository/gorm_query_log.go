package repository

import (
	"context"
	"fmt"

	"github.com/dustin/showfinder/internal/audit"
	"github.com/dustin/showfinder/pkg/logger"
	"gorm.io/gorm"
)

// gormQueryLogWriter persists search audit events to user_query_logs
type gormQueryLogWriter struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewGORMQueryLogWriter creates the database audit sink
func NewGORMQueryLogWriter(db *gorm.DB, log *logger.Logger) audit.Writer {
	return &gormQueryLogWriter{
		db:     db,
		logger: log.WithComponent("gorm-query-log-writer"),
	}
}

func (w *gormQueryLogWriter) Name() string {
	return "database"
}

func (w *gormQueryLogWriter) Write(ctx context.Context, event audit.Event) error {
	row, err := audit.NewQueryLog(event)
	if err != nil {
		return err
	}

	if err := w.db.WithContext(ctx).Create(row).Error; err != nil {
		w.logger.Error("Failed to store query log: " + err.Error())
		return fmt.Errorf("failed to store query log: %w", err)
	}
	return nil
}
