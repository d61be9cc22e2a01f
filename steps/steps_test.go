package steps_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/models"
	"github.com/simon020286/go-dataflow/observer"
	"github.com/simon020286/go-dataflow/steps"
)

type recordingTarget struct {
	mu   sync.Mutex
	msgs []observer.Message
}

func (r *recordingTarget) Send(msg observer.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingTarget) messages() []observer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observer.Message(nil), r.msgs...)
}

func constSpec(v any) models.Spec {
	return models.NewSpec("const", v)
}

func create(t *testing.T, spec models.Spec) (models.Step, []models.Spec) {
	t.Helper()
	step, children, err := builder.CreateStep(spec)
	require.NoError(t, err)
	return step, children
}

func TestRegisteredVariants(t *testing.T) {
	types := builder.ListStepTypes()
	for _, name := range []string{"arith", "const", "js", "json", "lua", "payload", "relay"} {
		assert.Contains(t, types, name)
	}
}

func TestConstStep(t *testing.T) {
	step, children := create(t, constSpec(3))
	assert.Empty(t, children)
	assert.Equal(t, "const(3)", step.Describe())
	assert.Equal(t, models.Forward(3), step.Start(nil))
	assert.Equal(t, models.Ok(), step.Emit(0, 1))
}

func TestConstStep_InvalidArgs(t *testing.T) {
	for _, spec := range []models.Spec{
		models.NewSpec("const"),
		models.NewSpec("const", 1, 2),
		models.NewSpec("const", constSpec(1)),
	} {
		_, _, err := builder.CreateStep(spec)
		assert.ErrorIs(t, err, models.ErrInvalidArgs, spec.String())
	}
}

func TestPayloadStep(t *testing.T) {
	step, children := create(t, models.NewSpec("payload"))
	assert.Empty(t, children)
	assert.Equal(t, models.Forward("hello"), step.Start("hello"))

	_, _, err := builder.CreateStep(models.NewSpec("payload", 1))
	assert.ErrorIs(t, err, models.ErrInvalidArgs)
}

func TestArithStep_Zip(t *testing.T) {
	left, right := constSpec(0), constSpec(0)
	step, children := create(t, models.NewSpec("arith", left, "+", right))
	assert.Equal(t, []models.Spec{left, right}, children)
	assert.Equal(t, "arith(+)", step.Describe())

	assert.Equal(t, models.Ok(), step.Start(nil))
	assert.Equal(t, models.Ok(), step.Emit(0, 1))
	assert.Equal(t, models.Ok(), step.Emit(0, 2))
	assert.Equal(t, models.Forward(int64(11)), step.Emit(1, 10))
	assert.Equal(t, models.Forward(int64(22)), step.Emit(1, 20))
	assert.Equal(t, models.Ok(), step.Emit(1, 30))
	assert.Equal(t, models.Forward(int64(33)), step.Emit(0, 3))
}

func TestArithStep_Operators(t *testing.T) {
	tests := []struct {
		name  string
		left  any
		op    string
		right any
		want  any
	}{
		{"add", 3, "+", 8, int64(11)},
		{"sub", 2, "-", 5, int64(-3)},
		{"mul", int64(2), "*", int32(4), int64(8)},
		{"div truncates", 7, "/", 2, int64(3)},
		{"div truncates toward zero", -7, "/", 2, int64(-3)},
		{"float", 1.5, "+", 1, 2.5},
		{"float div", 7.0, "/", 2, 3.5},
		{"unsigned", uint64(5), "+", uint(1), int64(6)},
		{"unsigned above int64", uint64(math.MaxUint64), "*", 2, float64(math.MaxUint64) * 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, _ := create(t, models.NewSpec("arith", constSpec(0), tt.op, constSpec(0)))
			step.Emit(0, tt.left)
			assert.Equal(t, models.Forward(tt.want), step.Emit(1, tt.right))
		})
	}
}

func TestArithStep_DroppedResults(t *testing.T) {
	step, _ := create(t, models.NewSpec("arith", constSpec(0), "/", constSpec(0)))
	step.Emit(0, 1)
	assert.Equal(t, models.Ok(), step.Emit(1, 0))

	step, _ = create(t, models.NewSpec("arith", constSpec(0), "+", constSpec(0)))
	step.Emit(0, "one")
	assert.Equal(t, models.Ok(), step.Emit(1, 1))

	// the pair is consumed even when dropped
	step.Emit(0, 2)
	assert.Equal(t, models.Forward(int64(5)), step.Emit(1, 3))
}

func TestArithStep_InvalidArgs(t *testing.T) {
	for _, spec := range []models.Spec{
		models.NewSpec("arith"),
		models.NewSpec("arith", constSpec(1), "+"),
		models.NewSpec("arith", 1, "+", constSpec(1)),
		models.NewSpec("arith", constSpec(1), "%", constSpec(1)),
		models.NewSpec("arith", constSpec(1), 4, constSpec(1)),
		models.NewSpec("arith", constSpec(1), "+", 2),
	} {
		_, _, err := builder.CreateStep(spec)
		assert.ErrorIs(t, err, models.ErrInvalidArgs, spec.String())
	}
}

func TestArithStep_Fold(t *testing.T) {
	step, children := create(t, models.NewSpec("arith", constSpec(6), "*", constSpec(7)))
	folder, ok := step.(models.Folder)
	require.True(t, ok)

	spec, ok := folder.Fold(children)
	require.True(t, ok)
	assert.Equal(t, constSpec(int64(42)), spec)

	_, ok = folder.Fold([]models.Spec{constSpec(1), models.NewSpec("payload")})
	assert.False(t, ok)

	step, children = create(t, models.NewSpec("arith", constSpec(1), "/", constSpec(0)))
	_, ok = step.(models.Folder).Fold(children)
	assert.False(t, ok)
}

func TestJsStep_NoChildren(t *testing.T) {
	step, children := create(t, models.NewSpec("js", "6 * 7"))
	assert.Empty(t, children)
	assert.Equal(t, `js("6 * 7")`, step.Describe())
	assert.Equal(t, models.Forward(int64(42)), step.Start(nil))
}

func TestJsStep_Payload(t *testing.T) {
	step, _ := create(t, models.NewSpec("js", "payload + '!'"))
	assert.Equal(t, models.Forward("hi!"), step.Start("hi"))
}

func TestJsStep_ZipsChildren(t *testing.T) {
	step, children := create(t, models.NewSpec("js", "$0 + args[1] * 10",
		constSpec(0), constSpec(0)))
	assert.Len(t, children, 2)

	assert.Equal(t, models.Ok(), step.Start(nil))
	assert.Equal(t, models.Ok(), step.Emit(1, 2))
	assert.Equal(t, models.Ok(), step.Emit(1, 3))
	assert.Equal(t, models.Forward(int64(21)), step.Emit(0, 1))
	assert.Equal(t, models.Forward(int64(35)), step.Emit(0, 5))
}

func TestJsStep_Float(t *testing.T) {
	step, _ := create(t, models.NewSpec("js", "Math.sqrt($0*$0 + $1*$1)",
		constSpec(0), constSpec(0)))
	step.Emit(0, 3)
	res := step.Emit(1, 4)
	require.True(t, res.Forward)
	assert.InDelta(t, 5, res.Value, 1e-9)
}

func TestJsStep_RuntimeErrorDropsValue(t *testing.T) {
	step, _ := create(t, models.NewSpec("js", "undefinedFn($0)", constSpec(0)))
	assert.Equal(t, models.Ok(), step.Emit(0, 1))
}

func TestJsStep_InvalidArgs(t *testing.T) {
	for _, spec := range []models.Spec{
		models.NewSpec("js"),
		models.NewSpec("js", 12),
		models.NewSpec("js", ""),
		models.NewSpec("js", "1 +", constSpec(1)),
		models.NewSpec("js", "$0", 5),
	} {
		_, _, err := builder.CreateStep(spec)
		assert.ErrorIs(t, err, models.ErrInvalidArgs, spec.String())
	}
}

func TestRelayStep_Mirrors(t *testing.T) {
	target := &recordingTarget{}
	token := observer.NewToken()
	child := constSpec(1)

	step, children := create(t, steps.Relay(target, token, false, child))
	assert.Equal(t, []models.Spec{child}, children)

	assert.Equal(t, models.Ok(), step.Start("payload"))
	assert.Empty(t, target.messages())

	assert.Equal(t, models.Ok(), step.Emit(0, "a"))
	assert.Equal(t, models.Ok(), step.Emit(0, "b"))
	step.Done(0)

	assert.Equal(t, []observer.Message{
		observer.Emit(token, "a"),
		observer.Emit(token, "b"),
		observer.Done(token),
	}, target.messages())
}

func TestRelayStep_Pass(t *testing.T) {
	target := &recordingTarget{}
	token := observer.NewToken()

	step, _ := create(t, steps.Relay(target, token, true, constSpec(1)))
	assert.Equal(t, models.Forward(7), step.Emit(0, 7))
	assert.Equal(t, []observer.Message{observer.Emit(token, 7)}, target.messages())
}

func TestRelayStep_ThreeArgumentForm(t *testing.T) {
	target := &recordingTarget{}
	step, _ := create(t, models.NewSpec("relay", target, "tok", constSpec(1)))

	assert.Equal(t, models.Ok(), step.Emit(0, 1))
	assert.Contains(t, step.Describe(), "tok")
	assert.Contains(t, step.Describe(), "pass=false")
}

func TestRelayStep_DoneWithoutEmits(t *testing.T) {
	target := &recordingTarget{}
	token := observer.NewToken()
	step, _ := create(t, steps.Relay(target, token, false, constSpec(1)))

	step.Done(models.LastChild)
	assert.Equal(t, []observer.Message{observer.Done(token)}, target.messages())
}

func TestRelayStep_ClosedObserverDropsSilently(t *testing.T) {
	obs := observer.New()
	obs.Close()

	step, _ := create(t, steps.Relay(obs, observer.NewToken(), true, constSpec(1)))
	assert.NotPanics(t, func() {
		assert.Equal(t, models.Forward(1), step.Emit(0, 1))
		step.Done(0)
	})
}

func TestRelayStep_InvalidArgs(t *testing.T) {
	target := &recordingTarget{}
	for _, spec := range []models.Spec{
		models.NewSpec("relay"),
		models.NewSpec("relay", target, "tok"),
		models.NewSpec("relay", "nope", "tok", constSpec(1)),
		models.NewSpec("relay", target, 12, constSpec(1)),
		models.NewSpec("relay", target, "", constSpec(1)),
		models.NewSpec("relay", target, "tok", "yes", constSpec(1)),
		models.NewSpec("relay", target, "tok", 5),
		models.NewSpec("relay", target, "tok", true, constSpec(1), constSpec(2)),
	} {
		_, _, err := builder.CreateStep(spec)
		assert.ErrorIs(t, err, models.ErrInvalidArgs, spec.String())
	}
}
