package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/showfinder/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a structured logger with validation and defaults
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	// Set defaults for empty config values
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	format := cfg.Format
	if format == "" {
		format = "json"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "showfinder"
	}

	logDir := cfg.Directory
	if logDir == "" {
		logDir = "./logs"
	}

	maxSize := 100
	if cfg.MaxSizeMB != "" {
		v, err := strconv.Atoi(cfg.MaxSizeMB)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid log max size '%s'", cfg.MaxSizeMB)
		}
		maxSize = v
	}

	maxBackups := 7
	if cfg.MaxBackups != "" {
		v, err := strconv.Atoi(cfg.MaxBackups)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid log max backups '%s'", cfg.MaxBackups)
		}
		maxBackups = v
	}

	// Validate log level early to fail fast
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %v", level, err)
	}

	var output io.Writer
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:     os.Stdout,
			NoColor: false,
		}
	} else {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}

		// Rotated file plus stdout
		file := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, serviceName+".log"),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		output = io.MultiWriter(os.Stdout, file)
	}

	logger := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{logger: logger}, nil
}

// NewWithWriter builds a debug-level JSON logger on top of w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
}

// Nop discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *Logger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

// WithComponent returns a logger instance with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

// WithField returns a logger carrying one extra string field
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{
		logger: l.logger.With().Str(key, value).Logger(),
	}
}
