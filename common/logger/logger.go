// Package logger wraps slog with the helpers the reconciliation
// pipeline logs through: batch- and object-scoped fields, and
// error-kind tagging for the pipeline's sentinel errors.
package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"

	"github.com/dpreserve/drreplicator/common/clients"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// Logger wraps slog.Logger with contextual fields.
type Logger struct {
	*slog.Logger
}

// New creates a new logger. format "json" selects a plain JSON handler
// for production; anything else uses tint for colorized console output.
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		opts := &slog.HandlerOptions{
			Level: logLevel,
		}
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger carrying the batch id the Coordinator
// attached to ctx, if any, so every log line inside a batch is
// correlated with the X-Batch-ID header on its upstream requests.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if batchID, ok := clients.BatchID(ctx); ok {
		return l.WithBatchID(batchID)
	}
	return l
}

// WithBatchID adds batch_id to the logger context. A batch is the unit
// of work the Coordinator processes end to end.
func (l *Logger) WithBatchID(batchID string) *Logger {
	return &Logger{Logger: l.With("batch_id", batchID)}
}

// WithObjectID adds object_id (a DR Object's destination path or
// identifier) to the logger context.
func (l *Logger) WithObjectID(objectID string) *Logger {
	return &Logger{Logger: l.With("object_id", objectID)}
}

// Error logs an error with a stack trace attached and, when one of the
// args is a pipeline error, its kind, so batch failures can be
// filtered by what actually went wrong.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	if kind, ok := errorKind(args...); ok {
		args = append(args, "error_kind", kind)
	}
	l.Logger.Error(msg, args...)
}

// ErrorContext is Error with a context threaded to the handler.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	if kind, ok := errorKind(args...); ok {
		args = append(args, "error_kind", kind)
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// errorKinds orders the pipeline sentinels for classification; the
// first match wins.
var errorKinds = []struct {
	sentinel error
	kind     string
}{
	{domain.ErrDecode, "decode"},
	{domain.ErrUpstream, "upstream"},
	{domain.ErrSchema, "schema"},
	{domain.ErrInvariant, "invariant"},
	{domain.ErrStorage, "storage"},
	{domain.ErrNotify, "notify"},
}

// errorKind reports the pipeline error kind of the first error value
// among args that wraps one of the sentinels; error values wrapping
// none of them are skipped.
func errorKind(args ...any) (string, bool) {
	for _, a := range args {
		err, ok := a.(error)
		if !ok {
			continue
		}
		for _, ek := range errorKinds {
			if errors.Is(err, ek.sentinel) {
				return ek.kind, true
			}
		}
	}
	return "", false
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
