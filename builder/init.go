package builder

import (
	"embed"
	"fmt"
	"log/slog"
)

//go:embed graphs/*.yaml
var embeddedGraphs embed.FS

// globalGraphRegistry is the global graph registry
var globalGraphRegistry *GraphRegistry

func init() {
	globalGraphRegistry = NewGraphRegistry()

	if err := globalGraphRegistry.LoadGraphsFromFS(embeddedGraphs, "graphs"); err != nil {
		slog.Warn("Failed to load embedded graphs", slog.Any("error", err))
	}

	customGraphsPath := GetGraphsPath()
	if err := globalGraphRegistry.LoadGraphsFromDirectory(customGraphsPath); err != nil {
		slog.Warn("Failed to load custom graphs",
			slog.String("path", customGraphsPath),
			slog.Any("error", err))
	}
}

// GetGlobalGraphRegistry returns the global graph registry
func GetGlobalGraphRegistry() *GraphRegistry {
	return globalGraphRegistry
}

// ReloadGraphs reloads embedded and custom graphs
func ReloadGraphs() error {
	newRegistry := NewGraphRegistry()

	if err := newRegistry.LoadGraphsFromFS(embeddedGraphs, "graphs"); err != nil {
		return fmt.Errorf("failed to load embedded graphs: %w", err)
	}

	if err := newRegistry.LoadGraphsFromDirectory(GetGraphsPath()); err != nil {
		return fmt.Errorf("failed to load custom graphs: %w", err)
	}

	globalGraphRegistry = newRegistry
	slog.Info("Reloaded graphs", slog.Any("graphs", globalGraphRegistry.List()))
	return nil
}
