package steps

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dop251/goja"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/models"
)

// @step name=js category=script arity=n description=Evaluates a JavaScript expression over one emission of each child, exposed as args[i] and $i
type JsConfig struct {
	Expr     string        `step:"required,desc=JavaScript expression"`
	Children []models.Spec `step:"desc=Steps whose emissions are zipped into args"`
}

type JsStep struct {
	logging
	cfg     JsConfig
	program *goja.Program
	runtime *goja.Runtime
	queues  [][]any
}

func (s *JsStep) Init(args []any) ([]models.Spec, error) {
	if len(args) == 0 {
		return nil, models.ErrArgs("js", "missing expression")
	}
	expr, ok := args[0].(string)
	if !ok || expr == "" {
		return nil, models.ErrArgs("js", "expression must be a non-empty string")
	}

	children := make([]models.Spec, 0, len(args)-1)
	for i, arg := range args[1:] {
		child, ok := arg.(models.Spec)
		if !ok {
			return nil, models.ErrArgs("js", "argument %d must be a step", i+1)
		}
		children = append(children, child)
	}

	// The expression is the return value of an immediately invoked function
	wrappedCode := "(function() {\n return " + expr + "\n})()"
	program, err := goja.Compile("js", wrappedCode, false)
	if err != nil {
		return nil, models.ErrArgs("js", "failed to compile %q: %v", expr, err)
	}

	s.cfg = JsConfig{Expr: expr, Children: children}
	s.program = program
	s.runtime = goja.New()
	s.queues = make([][]any, len(children))
	return children, nil
}

func (s *JsStep) Describe() string {
	return "js(" + strconv.Quote(s.cfg.Expr) + ")"
}

func (s *JsStep) Start(payload any) models.Result {
	if err := s.runtime.Set("payload", payload); err != nil {
		s.warn(err)
		return models.Ok()
	}
	if len(s.queues) > 0 {
		return models.Ok()
	}
	return s.eval(nil)
}

func (s *JsStep) Emit(child models.ChildID, data any) models.Result {
	if child < 0 || int(child) >= len(s.queues) {
		return models.Ok()
	}
	s.queues[child] = append(s.queues[child], data)

	for _, q := range s.queues {
		if len(q) == 0 {
			return models.Ok()
		}
	}

	values := make([]any, len(s.queues))
	for i, q := range s.queues {
		values[i] = q[0]
		s.queues[i] = q[1:]
	}
	return s.eval(values)
}

func (s *JsStep) Done(models.ChildID) {}

func (s *JsStep) eval(values []any) models.Result {
	if values == nil {
		values = []any{}
	}
	if err := s.runtime.Set("args", values); err != nil {
		s.warn(err)
		return models.Ok()
	}
	for i, v := range values {
		if err := s.runtime.Set("$"+strconv.Itoa(i), v); err != nil {
			s.warn(err)
			return models.Ok()
		}
	}

	result, err := s.runtime.RunProgram(s.program)
	if err != nil {
		s.warn(fmt.Errorf("JavaScript execution error: %w", err))
		return models.Ok()
	}
	return models.Forward(result.Export())
}

func (s *JsStep) warn(err error) {
	s.log().Warn("Dropped script result",
		log.Variant("js"),
		slog.String("expr", s.cfg.Expr),
		log.Error(err))
}

func init() {
	builder.RegisterStepType("js", func() models.Step {
		return &JsStep{}
	})
}
