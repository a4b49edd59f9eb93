package trackstore

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with trackstore-specific helpers, so the packages
// log consistent field names without every call site repeating them.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. If handler is nil, a
// text handler to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output. It is the default
// for library use.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))}
}

// WithPath tags the logger with the tracks file path.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogAppend logs an append batch.
func (l *Logger) LogAppend(count int, err error) {
	if err != nil {
		l.Error("append failed", "rows", count, "error", err)
	} else {
		l.Debug("append completed", "rows", count)
	}
}

// LogFinalize logs index build and close of a writer.
func (l *Logger) LogFinalize(rows uint64, err error) {
	if err != nil {
		l.Error("finalize failed", "rows", rows, "error", err)
	} else {
		l.Info("finalize completed", "rows", rows)
	}
}

// LogRepair logs a standalone index repair.
func (l *Logger) LogRepair(path string, err error) {
	if err != nil {
		l.Error("index repair failed", "path", path, "error", err)
	} else {
		l.Info("index repair completed", "path", path)
	}
}
