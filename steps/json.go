package steps

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/models"
)

// @step name=json category=data arity=1 description=Parses JSON text emitted by its child and forwards the value at an optional path
type JsonConfig struct {
	Path  string      `step:"desc=gjson path selecting part of the document (whole document when empty)"`
	Child models.Spec `step:"required,desc=Step emitting JSON strings"`
}

type JsonStep struct {
	logging
	cfg JsonConfig
}

func (s *JsonStep) Init(args []any) ([]models.Spec, error) {
	var cfg JsonConfig
	switch len(args) {
	case 1:
	case 2:
		path, ok := args[0].(string)
		if !ok {
			return nil, models.ErrArgs("json", "path must be a string, got %T", args[0])
		}
		cfg.Path = path
	default:
		return nil, models.ErrArgs("json", "expected 1 or 2 arguments, got %d", len(args))
	}

	child, ok := args[len(args)-1].(models.Spec)
	if !ok {
		return nil, models.ErrArgs("json", "last argument must be a step")
	}
	cfg.Child = child
	s.cfg = cfg
	return []models.Spec{child}, nil
}

func (s *JsonStep) Describe() string {
	if s.cfg.Path == "" {
		return "json"
	}
	return "json(" + strconv.Quote(s.cfg.Path) + ")"
}

func (s *JsonStep) Start(any) models.Result {
	return models.Ok()
}

func (s *JsonStep) Emit(_ models.ChildID, data any) models.Result {
	var text string
	switch v := data.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		s.warn("value is not JSON text", data)
		return models.Ok()
	}

	if !gjson.Valid(text) {
		s.warn("invalid JSON", data)
		return models.Ok()
	}

	result := gjson.Parse(text)
	if s.cfg.Path != "" {
		result = result.Get(s.cfg.Path)
		if !result.Exists() {
			s.warn("path not found", data)
			return models.Ok()
		}
	}
	return models.Forward(jsonValue(result))
}

func (s *JsonStep) Done(models.ChildID) {}

func (s *JsonStep) warn(reason string, data any) {
	s.log().Warn("Dropped JSON value",
		log.Variant("json"),
		slog.String("path", s.cfg.Path),
		slog.Any("data", data),
		log.ErrorString(reason))
}

// jsonValue keeps integral numbers integral so they combine with integer
// arithmetic
func jsonValue(result gjson.Result) any {
	if result.Type == gjson.Number && !strings.ContainsAny(result.Raw, ".eE") {
		if i, err := strconv.ParseInt(result.Raw, 10, 64); err == nil {
			return i
		}
	}
	return result.Value()
}

func init() {
	builder.RegisterStepType("json", func() models.Step {
		return &JsonStep{}
	})
}
