package config

import "time"

// GraphConfig represents a complete graph definition loaded from YAML
type GraphConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Optimize    bool           `yaml:"optimize"`            // Apply the rewrite pass before running
	Runs        int            `yaml:"runs,omitempty"`      // Number of runs (default 1)
	Timeout     time.Duration  `yaml:"timeout,omitempty"`   // Collection timeout per run
	Payload     any            `yaml:"payload,omitempty"`   // Root payload of every run
	Variables   map[string]any `yaml:"variables,omitempty"` // Values referenced as $var:name
	Root        StepConfig     `yaml:"root"`
}

// StepConfig represents one {variant, args} node of a step tree. An
// argument that is a mapping with a "variant" key is a child node
type StepConfig struct {
	Variant string `yaml:"variant"`
	Args    []any  `yaml:"args,omitempty"`
}

const (
	DefaultRuns    = 1
	DefaultTimeout = 5 * time.Second
)

// RunCount returns the configured number of runs, defaulting to one
func (c *GraphConfig) RunCount() int {
	if c.Runs <= 0 {
		return DefaultRuns
	}
	return c.Runs
}

// CollectTimeout returns the configured collection timeout
func (c *GraphConfig) CollectTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// AsStepConfig reports whether a decoded argument describes a child node
// and converts it
func AsStepConfig(arg any) (StepConfig, bool) {
	switch v := arg.(type) {
	case StepConfig:
		return v, true
	case *StepConfig:
		if v == nil {
			return StepConfig{}, false
		}
		return *v, true
	case map[string]any:
		variant, ok := v["variant"].(string)
		if !ok {
			return StepConfig{}, false
		}
		args, _ := v["args"].([]any)
		return StepConfig{Variant: variant, Args: args}, true
	default:
		return StepConfig{}, false
	}
}
