package tierstore

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/tierstore/model"
)

// Logger wraps slog.Logger with tierstore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithKey adds a key field to the logger (useful for tagging per-record
// operations).
func (l *Logger) WithKey(key model.Key) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", int64(key)),
	}
}

// WithTier adds a tier field to the logger.
func (l *Logger) WithTier(t model.Tier) *Logger {
	return &Logger{
		Logger: l.Logger.With("tier", t.String()),
	}
}

// LogPromotion logs the outcome of a cold-to-hot promotion attempt.
func (l *Logger) LogPromotion(key model.Key, won bool) {
	if won {
		l.Debug("record promoted",
			"key", int64(key),
		)
	} else {
		l.Debug("promotion race lost, deferring to resident copy",
			"key", int64(key),
		)
	}
}

// LogEviction logs an eviction pass.
func (l *Logger) LogEviction(candidates, moved, parked int, duration time.Duration) {
	l.Debug("eviction pass completed",
		"candidates", candidates,
		"moved", moved,
		"parked", parked,
		"duration", duration,
	)
}
