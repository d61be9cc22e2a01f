package steps

import (
	"fmt"
	"log/slog"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/models"
	"github.com/simon020286/go-dataflow/observer"
)

// @step name=relay category=observe arity=1 description=Mirrors every emission and the completion of its child to an observer under a token
type RelayConfig struct {
	Target observer.Target `step:"required,desc=Observer receiving the stream"`
	Token  observer.Token  `step:"required,desc=Correlation token of the stream"`
	Pass   bool            `step:"default=false,desc=Also forward emissions to the parent"`
	Child  models.Spec     `step:"required,desc=Observed step"`
}

// RelayStep never alters the values it mirrors. Its configuration is fixed
// after Init
type RelayStep struct {
	logging
	cfg     RelayConfig
	relayed int
}

func (s *RelayStep) Init(args []any) ([]models.Spec, error) {
	cfg, err := parseRelay(args)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return []models.Spec{cfg.Child}, nil
}

func parseRelay(args []any) (RelayConfig, error) {
	var cfg RelayConfig
	switch len(args) {
	case 3:
	case 4:
		pass, ok := args[2].(bool)
		if !ok {
			return cfg, models.ErrArgs("relay", "pass flag must be a bool, got %T", args[2])
		}
		cfg.Pass = pass
	default:
		return cfg, models.ErrArgs("relay", "expected 3 or 4 arguments, got %d", len(args))
	}

	target, ok := args[0].(observer.Target)
	if !ok || target == nil {
		return cfg, models.ErrArgs("relay", "target must be an observer, got %T", args[0])
	}
	cfg.Target = target

	switch t := args[1].(type) {
	case observer.Token:
		cfg.Token = t
	case string:
		cfg.Token = observer.Token(t)
	default:
		return cfg, models.ErrArgs("relay", "token must be a string, got %T", args[1])
	}
	if cfg.Token == "" {
		return cfg, models.ErrArgs("relay", "token must not be empty")
	}

	child, ok := args[len(args)-1].(models.Spec)
	if !ok {
		return cfg, models.ErrArgs("relay", "last argument must be a step")
	}
	cfg.Child = child
	return cfg, nil
}

func (s *RelayStep) Describe() string {
	return fmt.Sprintf("relay(%v, %s, pass=%t)", s.cfg.Target, s.cfg.Token, s.cfg.Pass)
}

func (s *RelayStep) Start(any) models.Result {
	return models.Ok()
}

func (s *RelayStep) Emit(_ models.ChildID, data any) models.Result {
	s.cfg.Target.Send(observer.Emit(s.cfg.Token, data))
	s.relayed++
	if s.cfg.Pass {
		return models.Forward(data)
	}
	return models.Ok()
}

func (s *RelayStep) Done(models.ChildID) {
	s.cfg.Target.Send(observer.Done(s.cfg.Token))
	s.log().Debug("Stream relayed",
		log.Token(s.cfg.Token),
		slog.String("target", fmt.Sprint(s.cfg.Target)),
		slog.Int("values", s.relayed))
}

// Relay builds the spec of a relay observing child. With pass set the
// relay is transparent to its parent
func Relay(target observer.Target, token observer.Token, pass bool, child models.Spec) models.Spec {
	return models.NewSpec("relay", target, token, pass, child)
}

func init() {
	builder.RegisterStepType("relay", func() models.Step {
		return &RelayStep{}
	})
}
