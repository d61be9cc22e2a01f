package builder

import (
	"fmt"
	"slices"
	"sync"

	"github.com/simon020286/go-dataflow/models"
)

// StepFactory creates a fresh, uninitialized instance of a step variant
type StepFactory func() models.Step

var (
	// registry contains all registered factories by variant name
	registry = make(map[string]StepFactory)
	mu       sync.RWMutex
)

// RegisterStepType registers a factory for a step variant
// This function is called by init() in step packages
func RegisterStepType(variant string, factory StepFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[variant] = factory
}

// GetStepFactory returns the factory for a step variant
func GetStepFactory(variant string) (StepFactory, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, exists := registry[variant]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	return factory, nil
}

// ListStepTypes returns all registered variant names, sorted
func ListStepTypes() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
