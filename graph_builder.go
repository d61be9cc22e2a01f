package dataflow

import (
	"fmt"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/config"
)

// BuildFromConfig builds a graph from a loaded configuration. The
// configuration's optimize flag adds WithOptimize
func BuildFromConfig(cfg *config.GraphConfig, opts ...Option) (*Graph, error) {
	if err := config.ValidateGraph(cfg); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	spec, err := builder.SpecFromConfig(cfg.Root, cfg.Variables)
	if err != nil {
		return nil, err
	}

	if cfg.Optimize {
		opts = append(opts, WithOptimize())
	}
	return Build(spec, opts...)
}
