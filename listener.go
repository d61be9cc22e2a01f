package dataflow

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/simon020286/go-dataflow/models"
)

// NewLoggingListener returns a listener that writes every graph event to
// logger. Run events log at info, node events at debug
func NewLoggingListener(logger *slog.Logger) models.EventListener {
	return models.EventListenerFunc(func(event models.Event) {
		level := slog.LevelDebug
		switch event.Type {
		case models.EventRunStarted, models.EventRunCompleted:
			level = slog.LevelInfo
		case models.EventRunTerminated:
			level = slog.LevelWarn
		}

		attrs := make([]slog.Attr, 0, len(event.Data)+1)
		attrs = append(attrs, slog.String("event", string(event.Type)))
		for _, key := range slices.Sorted(maps.Keys(event.Data)) {
			attrs = append(attrs, slog.Any(key, event.Data[key]))
		}
		logger.LogAttrs(context.Background(), level, "Graph event", attrs...)
	})
}
