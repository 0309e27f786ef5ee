package database

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/showfinder/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool holds the parsed connection pool limits
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the postgres connection string, filling local-development defaults
func DSN(cfg *config.DatabaseConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == "" {
		port = "5432"
	}

	user := cfg.User
	if user == "" {
		user = "postgres"
	}

	dbName := cfg.DBName
	if dbName == "" {
		dbName = "showfinder"
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	// empty password is valid for local development
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, cfg.Password, dbName, port, sslMode)
}

// ParsePool validates the pool settings. Search holds a connection for both
// stages, so the defaults leave room for concurrent requests and the worker.
func ParsePool(cfg *config.DatabaseConfig) (Pool, error) {
	pool := Pool{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
	}

	if cfg.MaxOpenConns != "" {
		n, err := strconv.Atoi(cfg.MaxOpenConns)
		if err != nil || n <= 0 {
			return Pool{}, fmt.Errorf("invalid max open connections '%s'", cfg.MaxOpenConns)
		}
		pool.MaxOpenConns = n
	}

	if cfg.MaxIdleConns != "" {
		n, err := strconv.Atoi(cfg.MaxIdleConns)
		if err != nil || n < 0 {
			return Pool{}, fmt.Errorf("invalid max idle connections '%s'", cfg.MaxIdleConns)
		}
		pool.MaxIdleConns = n
	}
	if pool.MaxIdleConns > pool.MaxOpenConns {
		pool.MaxIdleConns = pool.MaxOpenConns
	}

	if cfg.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil || d < 0 {
			return Pool{}, fmt.Errorf("invalid connection max lifetime '%s'", cfg.ConnMaxLifetime)
		}
		pool.ConnMaxLifetime = d
	}

	return pool, nil
}

// NewConnection opens the database and applies the pool limits. Driver errors
// are translated so repositories can match gorm.ErrDuplicatedKey.
func NewConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	pool, err := ParsePool(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// EnableVectorExtension makes sure pgvector is installed before migrating vector columns
func EnableVectorExtension(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return nil
}
