package steps

import (
	"fmt"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/models"
)

// @step name=const category=source arity=0 description=Emits a fixed value once per run
type ConstConfig struct {
	Value any `step:"required,desc=Value emitted when the run starts"`
}

type ConstStep struct {
	cfg ConstConfig
}

func (s *ConstStep) Init(args []any) ([]models.Spec, error) {
	if len(args) != 1 {
		return nil, models.ErrArgs("const", "expected 1 argument, got %d", len(args))
	}
	if _, ok := args[0].(models.Spec); ok {
		return nil, models.ErrArgs("const", "value cannot be a step")
	}
	s.cfg = ConstConfig{Value: args[0]}
	return nil, nil
}

func (s *ConstStep) Describe() string {
	return fmt.Sprintf("const(%v)", s.cfg.Value)
}

func (s *ConstStep) Start(any) models.Result {
	return models.Forward(s.cfg.Value)
}

func (s *ConstStep) Emit(models.ChildID, any) models.Result {
	return models.Ok()
}

func (s *ConstStep) Done(models.ChildID) {}

// @step name=payload category=source arity=0 description=Emits the payload the run was started with
type PayloadConfig struct{}

type PayloadStep struct{}

func (s *PayloadStep) Init(args []any) ([]models.Spec, error) {
	if len(args) != 0 {
		return nil, models.ErrArgs("payload", "expected no arguments, got %d", len(args))
	}
	return nil, nil
}

func (s *PayloadStep) Describe() string {
	return "payload"
}

func (s *PayloadStep) Start(payload any) models.Result {
	return models.Forward(payload)
}

func (s *PayloadStep) Emit(models.ChildID, any) models.Result {
	return models.Ok()
}

func (s *PayloadStep) Done(models.ChildID) {}

// constValue extracts the value of a const spec
func constValue(spec models.Spec) (any, bool) {
	if spec.Variant != "const" || len(spec.Args) != 1 {
		return nil, false
	}
	if _, ok := spec.Args[0].(models.Spec); ok {
		return nil, false
	}
	return spec.Args[0], true
}

func init() {
	builder.RegisterStepType("const", func() models.Step {
		return &ConstStep{}
	})
	builder.RegisterStepType("payload", func() models.Step {
		return &PayloadStep{}
	})
}
