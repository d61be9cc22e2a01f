package config

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRoot    = errors.New("graph has no root step")
	ErrMissingVariant = errors.New("step has no variant")
)

// ValidateGraph validates the structure of a graph definition. Variant
// names and arities are checked later, when the graph is built
func ValidateGraph(cfg *GraphConfig) error {
	if cfg.Root.Variant == "" && len(cfg.Root.Args) == 0 {
		return ErrMissingRoot
	}
	if cfg.Runs < 0 {
		return fmt.Errorf("runs must not be negative, got %d", cfg.Runs)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if err := validateStep(cfg.Root, cfg.Variables); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	return nil
}

// validateStep checks a node and, recursively, its children
func validateStep(step StepConfig, vars map[string]any) error {
	if step.Variant == "" {
		return ErrMissingVariant
	}

	for i, arg := range step.Args {
		if err := validateArg(arg, vars); err != nil {
			return fmt.Errorf("%s arg %d: %w", step.Variant, i, err)
		}
	}
	return nil
}

func validateArg(arg any, vars map[string]any) error {
	if child, ok := AsStepConfig(arg); ok {
		return validateStep(child, vars)
	}

	switch v := arg.(type) {
	case map[string]any:
		if _, hasVariant := v["variant"]; hasVariant {
			return fmt.Errorf("variant must be a string")
		}

	case string:
		if ref, ok := ParseValue(v).(VariableReference); ok {
			if _, exists := vars[ref.Name]; !exists {
				return fmt.Errorf("variable '%s' referenced but not defined", ref.Name)
			}
		}
	}
	return nil
}
