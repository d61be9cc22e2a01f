package steps

import (
	"fmt"
	"log/slog"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/models"
)

// @step name=arith category=math arity=2 description=Pairs left and right emissions in arrival order and combines them with an operator
type ArithConfig struct {
	Left  models.Spec `step:"required,desc=Step producing left operands"`
	Op    string      `step:"required,desc=One of + - * /"`
	Right models.Spec `step:"required,desc=Step producing right operands"`
}

type ArithStep struct {
	logging
	cfg   ArithConfig
	left  []any
	right []any
}

const (
	leftChild  models.ChildID = 0
	rightChild models.ChildID = 1
)

func (s *ArithStep) Init(args []any) ([]models.Spec, error) {
	cfg, err := parseArith(args)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return []models.Spec{cfg.Left, cfg.Right}, nil
}

func parseArith(args []any) (ArithConfig, error) {
	if len(args) != 3 {
		return ArithConfig{}, models.ErrArgs("arith",
			"expected 3 arguments, got %d", len(args))
	}
	left, ok := args[0].(models.Spec)
	if !ok {
		return ArithConfig{}, models.ErrArgs("arith", "left operand must be a step")
	}
	op, ok := args[1].(string)
	if !ok || !arithOps[op] {
		return ArithConfig{}, models.ErrArgs("arith", "invalid operator %v", args[1])
	}
	right, ok := args[2].(models.Spec)
	if !ok {
		return ArithConfig{}, models.ErrArgs("arith", "right operand must be a step")
	}
	return ArithConfig{Left: left, Op: op, Right: right}, nil
}

func (s *ArithStep) Describe() string {
	return fmt.Sprintf("arith(%s)", s.cfg.Op)
}

func (s *ArithStep) Start(any) models.Result {
	return models.Ok()
}

func (s *ArithStep) Emit(child models.ChildID, data any) models.Result {
	switch child {
	case leftChild:
		s.left = append(s.left, data)
	case rightChild:
		s.right = append(s.right, data)
	default:
		return models.Ok()
	}

	if len(s.left) == 0 || len(s.right) == 0 {
		return models.Ok()
	}
	l, r := s.left[0], s.right[0]
	s.left, s.right = s.left[1:], s.right[1:]

	res, err := applyOp(s.cfg.Op, l, r)
	if err != nil {
		s.log().Warn("Dropped arithmetic result",
			log.Variant("arith"),
			slog.String("op", s.cfg.Op),
			slog.Any("left", l),
			slog.Any("right", r),
			log.Error(err))
		return models.Ok()
	}
	return models.Forward(res)
}

func (s *ArithStep) Done(models.ChildID) {}

// Fold replaces an operation on two constants with its result. Operations
// that would drop their result are kept
func (s *ArithStep) Fold(children []models.Spec) (models.Spec, bool) {
	if len(children) != 2 {
		return models.Spec{}, false
	}
	l, ok := constValue(children[0])
	if !ok {
		return models.Spec{}, false
	}
	r, ok := constValue(children[1])
	if !ok {
		return models.Spec{}, false
	}
	res, err := applyOp(s.cfg.Op, l, r)
	if err != nil {
		return models.Spec{}, false
	}
	return models.NewSpec("const", res), true
}

func init() {
	builder.RegisterStepType("arith", func() models.Step {
		return &ArithStep{}
	})
}
