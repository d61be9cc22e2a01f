package builder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simon020286/go-dataflow/config"
	"github.com/simon020286/go-dataflow/models"
)

var ErrUnknownVariant = errors.New("unknown step variant")

// CreateStep instantiates the variant named by spec and initializes it with
// the spec's arguments, returning the step and its child specifications
func CreateStep(spec models.Spec) (models.Step, []models.Spec, error) {
	factory, err := GetStepFactory(spec.Variant)
	if err != nil {
		return nil, nil, err
	}
	step := factory()
	children, err := step.Init(spec.Args)
	if err != nil {
		return nil, nil, err
	}
	return step, children, nil
}

// GenerateRunID generates a unique ID for a run
func GenerateRunID() string {
	return "run_" + uuid.NewString()
}

// SpecFromConfig converts a step tree loaded from YAML into a models.Spec,
// resolving dynamic argument values against the graph variables
func SpecFromConfig(step config.StepConfig, vars map[string]any) (models.Spec, error) {
	scope := &config.Scope{Variables: vars}
	return specFromConfig(step, scope)
}

func specFromConfig(step config.StepConfig, scope *config.Scope) (models.Spec, error) {
	args := make([]any, len(step.Args))
	for i, arg := range step.Args {
		if child, ok := config.AsStepConfig(arg); ok {
			spec, err := specFromConfig(child, scope)
			if err != nil {
				return models.Spec{}, err
			}
			args[i] = spec
			continue
		}

		value, err := config.ParseValue(arg).Resolve(scope)
		if err != nil {
			return models.Spec{}, fmt.Errorf("%s arg %d: %w",
				step.Variant, i, models.ErrInterpolate(fmt.Sprint(i), err))
		}
		args[i] = value
	}
	return models.Spec{Variant: step.Variant, Args: args}, nil
}
