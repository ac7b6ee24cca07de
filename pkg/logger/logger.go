package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog for consistent logging across the library
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance writing JSON to stdout
func New() *Logger {
	return NewWithLevel(slog.LevelInfo)
}

// NewWithLevel creates a new logger with specified level
func NewWithLevel(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// NewDiscard creates a logger that drops all records, for tests
func NewDiscard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

// ParseLevel converts a level name into a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithField returns a logger with a pre-set field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.With(key, value),
	}
}

// WithFields returns a logger with multiple pre-set fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.With(args...),
	}
}
