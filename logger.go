package sonata

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/sonata/selection"
)

// Logger wraps slog.Logger with sonata-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithFile adds a file field to the logger.
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("file", name),
	}
}

// WithPopulation adds a population field to the logger.
func (l *Logger) WithPopulation(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("population", name),
	}
}

// LogOpen logs opening a storage or report file.
func (l *Logger) LogOpen(ctx context.Context, kind, name string, populations int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"kind", kind,
			"file", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "opened",
			"kind", kind,
			"file", name,
			"populations", populations,
		)
	}
}

// LogIndex logs loading or building an adjacency index.
func (l *Logger) LogIndex(ctx context.Context, direction string, stored bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "adjacency index failed",
			"direction", direction,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "adjacency index ready",
			"direction", direction,
			"stored", stored,
		)
	}
}

// LogMaterialize logs a node set materialization.
func (l *Logger) LogMaterialize(ctx context.Context, name, population string, sel selection.Selection, err error) {
	if err != nil {
		l.ErrorContext(ctx, "node set materialization failed",
			"node_set", name,
			"population", population,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "node set materialized",
			"node_set", name,
			"population", population,
			"ranges", sel.RangeCount(),
			"size", sel.FlatSize(),
		)
	}
}

// LogReportGet logs a report read.
func (l *Logger) LogReportGet(ctx context.Context, population string, ids, times, reads int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "report read failed",
			"population", population,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "report read completed",
			"population", population,
			"ids", ids,
			"times", times,
			"reads", reads,
		)
	}
}
