package respack

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with respack-specific context.
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
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithKey adds a resource key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// WithContainer adds a container field to the logger.
func (l *Logger) WithContainer(container string) *Logger {
	return &Logger{
		Logger: l.Logger.With("container", container),
	}
}

// LogLoad logs a load request.
func (l *Logger) LogLoad(ctx context.Context, key string, immediate bool, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "load failed",
			"key", key,
			"immediate", immediate,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "load completed with dependency failures",
			"key", key,
			"immediate", immediate,
			"failed", failed,
		)
	default:
		l.DebugContext(ctx, "load completed",
			"key", key,
			"immediate", immediate,
		)
	}
}

// LogImport logs the import of a single resource.
func (l *Logger) LogImport(ctx context.Context, key, resourceType string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "import failed",
			"key", key,
			"type", resourceType,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "import completed",
			"key", key,
			"type", resourceType,
			"duration", duration,
		)
	}
}

// LogDiscovery logs a discovery scan.
func (l *Logger) LogDiscovery(ctx context.Context, containers, resources, collisions int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "discovery failed",
			"error", err,
		)
	case collisions > 0:
		l.WarnContext(ctx, "discovery completed with key collisions",
			"containers", containers,
			"resources", resources,
			"collisions", collisions,
		)
	default:
		l.InfoContext(ctx, "discovery completed",
			"containers", containers,
			"resources", resources,
		)
	}
}

// LogRemove logs the removal of a resource or container.
func (l *Logger) LogRemove(ctx context.Context, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"key", key,
		)
	}
}

// LogVerify logs a verification pass.
func (l *Logger) LogVerify(ctx context.Context, checked int, corrupt []string, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "verify failed",
			"error", err,
		)
	case len(corrupt) > 0:
		l.WarnContext(ctx, "corrupt containers",
			"checked", checked,
			"corrupt", corrupt,
		)
	default:
		l.InfoContext(ctx, "verify completed",
			"checked", checked,
		)
	}
}
