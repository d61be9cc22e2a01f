package builder

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/simon020286/go-dataflow/config"
)

// GraphRegistry maintains named graph definitions
type GraphRegistry struct {
	mu     sync.RWMutex
	graphs map[string]*config.GraphConfig
}

// NewGraphRegistry creates a new registry
func NewGraphRegistry() *GraphRegistry {
	return &GraphRegistry{
		graphs: make(map[string]*config.GraphConfig),
	}
}

// Register registers a graph definition under its name
func (gr *GraphRegistry) Register(cfg *config.GraphConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("invalid graph definition: missing name")
	}
	if err := config.ValidateGraph(cfg); err != nil {
		return fmt.Errorf("invalid graph definition %s: %w", cfg.Name, err)
	}
	gr.mu.Lock()
	defer gr.mu.Unlock()
	gr.graphs[cfg.Name] = cfg
	return nil
}

// Get returns a graph definition by name
func (gr *GraphRegistry) Get(name string) (*config.GraphConfig, bool) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	cfg, exists := gr.graphs[name]
	return cfg, exists
}

// List returns all registered graph names, sorted
func (gr *GraphRegistry) List() []string {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	names := make([]string, 0, len(gr.graphs))
	for name := range gr.graphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of registered graphs
func (gr *GraphRegistry) Count() int {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	return len(gr.graphs)
}

// LoadGraphsFromFS loads every .yaml/.yml file in dir of fsys
func (gr *GraphRegistry) LoadGraphsFromFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read graphs directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return fmt.Errorf("failed to read graph file %s: %w", entry.Name(), err)
		}

		cfg, err := ParseGraph(data, entry.Name())
		if err != nil {
			return err
		}
		if err := gr.Register(cfg); err != nil {
			return err
		}
	}

	return nil
}

// LoadGraphsFromDirectory loads graphs from a filesystem directory. A
// missing directory is not an error; invalid files are skipped
func (gr *GraphRegistry) LoadGraphsFromDirectory(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read graphs directory %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		cfg, err := LoadGraphFile(filepath.Join(dirPath, entry.Name()))
		if err == nil {
			err = gr.Register(cfg)
		}
		if err != nil {
			slog.Warn("Skipping graph file",
				slog.String("file", entry.Name()),
				slog.Any("error", err))
		}
	}

	return nil
}

// LoadGraphFile reads and validates a single graph definition
func LoadGraphFile(path string) (*config.GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return ParseGraph(data, filepath.Base(path))
}

// ParseGraph decodes a graph definition. If the name is not specified, the
// file name without extension is used
func ParseGraph(data []byte, filename string) (*config.GraphConfig, error) {
	var cfg config.GraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", filename, err)
	}

	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	if err := config.ValidateGraph(&cfg); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", cfg.Name, err)
	}
	return &cfg, nil
}

// GetGraphsPath returns the path to the custom graphs directory
// Checks environment variable first, then uses default directory
func GetGraphsPath() string {
	if path := os.Getenv("GO_DATAFLOW_GRAPHS_PATH"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./graphs"
	}

	return filepath.Join(homeDir, ".go-dataflow", "graphs")
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
