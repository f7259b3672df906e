package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config mirrors config.LoggingConfig so the logger does not depend on the
// config package.
type Config struct {
	Level     string
	Output    string // stdout (default), file, both
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a JSON zerolog.Logger writing to stdout at the given level.
// An unknown level falls back to info.
func New(level string) zerolog.Logger {
	return build(os.Stdout, level)
}

// NewFromConfig creates the process logger, tagged with the service name.
//   - "file": rotating file via lumberjack
//   - "both": stdout and the rotating file
//   - anything else: stdout
func NewFromConfig(service string, cfg Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	switch cfg.Output {
	case "file":
		w = NewFileWriter(FileConfig{Path: cfg.FilePath, MaxSizeMB: cfg.MaxSizeMB, MaxFiles: cfg.MaxFiles})
	case "both":
		w = zerolog.MultiLevelWriter(os.Stdout,
			NewFileWriter(FileConfig{Path: cfg.FilePath, MaxSizeMB: cfg.MaxSizeMB, MaxFiles: cfg.MaxFiles}))
	}

	log := build(w, cfg.Level)
	if service != "" {
		log = log.With().Str("service", service).Logger()
	}
	return log
}

func build(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the correlation ID, or "" when unset.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the context logger with the correlation ID attached.
// Without a stored logger an info-level stdout logger is used.
func FromContext(ctx context.Context) zerolog.Logger {
	log, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		log = New("info")
	}

	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}
	return log
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}

// MaskEmail hides the local part of an address for logging, keeping its
// first character and the full domain: "ann@x.com" becomes "a**@x.com".
// Strings without an "@" are masked entirely.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat("*", len(email))
	}
	local := []rune(email[:at])
	return string(local[0]) + strings.Repeat("*", len(local)-1) + email[at:]
}
