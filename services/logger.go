package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// LogConfig controls where application logs go
type LogConfig struct {
	Dir   string
	Level string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns a logger writing to stderr and, when Dir is set, to a
// daily file named option_pricing_YYYYMMDD.log. The closer releases that file.
func NewLogger(cfg LogConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if cfg.Dir == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(cfg.Dir, fmt.Sprintf("option_pricing_%s.log", time.Now().Format("20060102")))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	return logger, file, nil
}

// newServiceLogger is the per-service logger used when none is injected.
func newServiceLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
