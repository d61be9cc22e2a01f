package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New constructs a JSON slog.Logger preconfigured at info level
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level. Output
// goes to stderr so that collected results on stdout stay parseable
func NewWithLevel(service, env, version string, lvl slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, service, env, version, lvl)
}

// NewWithWriter constructs a JSON slog.Logger writing to w
func NewWithWriter(
	w io.Writer, service, env, version string, lvl slog.Level,
) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name (debug, info, warn, error) to a
// slog.Level. The empty string maps to info
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
