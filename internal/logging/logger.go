// Package logging wraps log/slog with helpers for dataset passes and
// selection changes so every component logs with the same field names.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/paveg/colstat/internal/config"
)

// Logger wraps slog.Logger with colstat-specific helpers.
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
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// FromConfig builds a stderr logger honoring log_format and verbose_logging.
func FromConfig(cfg config.Config) *Logger {
	level := slog.LevelInfo
	if cfg.VerboseLogging {
		level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return NewJSONLogger(os.Stderr, level)
	}
	return NewTextLogger(os.Stderr, level)
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// WithPass adds a pass sequence number to the logger.
func (l *Logger) WithPass(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("pass", id),
	}
}

// LogPass logs the end of a streaming pass.
func (l *Logger) LogPass(ctx context.Context, tasks, chunks, rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pass failed",
			"tasks", tasks,
			"chunks", chunks,
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "pass completed",
			"tasks", tasks,
			"chunks", chunks,
			"rows", rows,
			"elapsed", elapsed,
		)
	}
}

// LogCancel logs a pass stopped by a progress observer or its context.
func (l *Logger) LogCancel(ctx context.Context, fraction float64) {
	l.InfoContext(ctx, "pass cancelled",
		"progress", fraction,
	)
}

// LogSelection logs a change to a named selection history.
func (l *Logger) LogSelection(ctx context.Context, name, action string, err error) {
	if err != nil {
		l.WarnContext(ctx, "selection change failed",
			"selection", name,
			"action", action,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "selection changed",
			"selection", name,
			"action", action,
		)
	}
}

// LogMutation logs a structural change to a dataset.
func (l *Logger) LogMutation(ctx context.Context, op, name string) {
	l.DebugContext(ctx, "dataset changed",
		"op", op,
		"name", name,
	)
}
