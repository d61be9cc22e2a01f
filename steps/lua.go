package steps

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/models"
)

// @step name=lua category=script arity=n description=Evaluates a Lua expression over one emission of each child, exposed as arg0, arg1 and so on
type LuaConfig struct {
	Expr     string        `step:"required,desc=Lua expression"`
	Children []models.Spec `step:"desc=Steps whose emissions are zipped into arguments"`
}

type LuaStep struct {
	logging
	cfg      LuaConfig
	bytecode []byte
	state    *lua.State
	queues   [][]any
}

const (
	luaGlobalTableIndex = -2
	luaTableIndex       = -3
	luaArgLocalTemplate = "local arg%d = select(%d, ...)"
	luaGlobalTableName  = "_G"
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

func (s *LuaStep) Init(args []any) ([]models.Spec, error) {
	if len(args) == 0 {
		return nil, models.ErrArgs("lua", "missing expression")
	}
	expr, ok := args[0].(string)
	if !ok || expr == "" {
		return nil, models.ErrArgs("lua", "expression must be a non-empty string")
	}

	children := make([]models.Spec, 0, len(args)-1)
	for i, arg := range args[1:] {
		child, ok := arg.(models.Spec)
		if !ok {
			return nil, models.ErrArgs("lua", "argument %d must be a step", i+1)
		}
		children = append(children, child)
	}

	lines := make([]string, 0, len(children)+1)
	for i := range children {
		lines = append(lines, fmt.Sprintf(luaArgLocalTemplate, i, i+1))
	}
	lines = append(lines, "return "+expr)

	L := lua.NewState()
	setupSandbox(L)
	if err := lua.LoadString(L, strings.Join(lines, "\n")); err != nil {
		return nil, models.ErrArgs("lua", "failed to compile %q: %v", expr, err)
	}
	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, models.ErrArgs("lua", "failed to compile %q: %v", expr, err)
	}
	L.SetTop(0)

	s.cfg = LuaConfig{Expr: expr, Children: children}
	s.bytecode = buf.Bytes()
	s.state = L
	s.queues = make([][]any, len(children))
	return children, nil
}

func setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (s *LuaStep) Describe() string {
	return "lua(" + strconv.Quote(s.cfg.Expr) + ")"
}

func (s *LuaStep) Start(any) models.Result {
	if len(s.queues) > 0 {
		return models.Ok()
	}
	return s.eval(nil)
}

func (s *LuaStep) Emit(child models.ChildID, data any) models.Result {
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

func (s *LuaStep) Done(models.ChildID) {}

func (s *LuaStep) eval(values []any) models.Result {
	L := s.state
	defer L.SetTop(0)

	if err := L.Load(bytes.NewReader(s.bytecode), "chunk", "b"); err != nil {
		s.warn(err)
		return models.Ok()
	}
	for _, v := range values {
		goToLua(L, v)
	}
	if err := L.ProtectedCall(len(values), 1, 0); err != nil {
		s.warn(fmt.Errorf("lua execution error: %w", err))
		return models.Ok()
	}
	return models.Forward(luaToGo(L, -1))
}

func (s *LuaStep) warn(err error) {
	s.log().Warn("Dropped script result",
		log.Variant("lua"),
		slog.String("expr", s.cfg.Expr),
		log.Error(err))
}

func goToLua(L *lua.State, value any) {
	if i, ok := toInt64(value); ok {
		L.PushInteger(int(i))
		return
	}
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case float64:
		L.PushNumber(v)
	case float32:
		L.PushNumber(float64(v))
	case []any:
		L.CreateTable(len(v), 0)
		for i, item := range v {
			L.PushInteger(i + 1)
			goToLua(L, item)
			L.SetTable(luaTableIndex)
		}
	case map[string]any:
		L.CreateTable(0, len(v))
		for k, item := range v {
			L.PushString(k)
			goToLua(L, item)
			L.SetTable(luaTableIndex)
		}
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		num, _ := L.ToNumber(index)
		if num == float64(int64(num)) {
			return int64(num)
		}
		return num
	case lua.TypeString:
		str, _ := L.ToString(index)
		return str
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToAny(L *lua.State, index int) any {
	length := L.RawLength(index)
	if length > 0 {
		abs := L.AbsIndex(index)
		arr := make([]any, length)
		for i := 1; i <= length; i++ {
			L.RawGetInt(abs, i)
			arr[i-1] = luaToGo(L, -1)
			L.Pop(1)
		}
		return arr
	}

	result := map[string]any{}
	abs := L.AbsIndex(index)
	L.PushNil()
	for L.Next(abs) {
		key := fmt.Sprintf("%v", luaToGo(L, -2))
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return result
}

func init() {
	builder.RegisterStepType("lua", func() models.Step {
		return &LuaStep{}
	})
}
