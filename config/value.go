package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dop251/goja"
)

// Scope carries what argument values may refer to when they are resolved
type Scope struct {
	Variables map[string]any
}

// ValueSpec represents a step argument that can be static or resolved at
// load time
type ValueSpec interface {
	IsStatic() bool
	GetStaticValue() (any, bool)
	GetDynamicExpression() (DynamicValue, bool)
	// Resolve resolves the value against the graph scope
	Resolve(scope *Scope) (any, error)
}

// StaticValue represents a literal value (number, string, bool, etc.)
type StaticValue struct {
	Value any
}

func NewStaticValue(value any) StaticValue {
	return StaticValue{
		Value: value,
	}
}

func (s StaticValue) IsStatic() bool {
	return true
}

func (s StaticValue) GetStaticValue() (any, bool) {
	return s.Value, true
}

func (s StaticValue) GetDynamicExpression() (DynamicValue, bool) {
	return DynamicValue{}, false
}

func (s StaticValue) Resolve(*Scope) (any, error) {
	return s.Value, nil
}

// DynamicValue represents an expression evaluated when the graph is loaded
type DynamicValue struct {
	Language   string // "js"
	Expression string // the expression to evaluate
}

func (d DynamicValue) IsStatic() bool {
	return false
}

func (d DynamicValue) GetStaticValue() (any, bool) {
	return nil, false
}

func (d DynamicValue) GetDynamicExpression() (DynamicValue, bool) {
	return d, true
}

func (d DynamicValue) Resolve(scope *Scope) (any, error) {
	switch d.Language {
	case "js", "javascript", "":
		return d.resolveJS(scope)
	default:
		return nil, fmt.Errorf("unsupported language: %s", d.Language)
	}
}

// resolveJS evaluates a JavaScript expression using Goja
func (d DynamicValue) resolveJS(scope *Scope) (any, error) {
	runtime := goja.New()

	if scope != nil && scope.Variables != nil {
		if err := runtime.Set("$vars", scope.Variables); err != nil {
			return nil, fmt.Errorf("failed to set graph variables: %w", err)
		}
	}

	wrappedCode := "(function() {\n return " + d.Expression + "\n})()"

	result, err := runtime.RunString(wrappedCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute JS expression '%s': %w", d.Expression, err)
	}

	return result.Export(), nil
}

// VariableReference represents a reference to a graph variable ($var:name)
type VariableReference struct {
	Name string
}

func (v VariableReference) IsStatic() bool {
	return false
}

func (v VariableReference) GetStaticValue() (any, bool) {
	return nil, false
}

func (v VariableReference) GetDynamicExpression() (DynamicValue, bool) {
	return DynamicValue{}, false
}

func (v VariableReference) Resolve(scope *Scope) (any, error) {
	if scope == nil || scope.Variables == nil {
		return nil, fmt.Errorf("variable '%s' not found: no graph variables defined", v.Name)
	}

	value, exists := scope.Variables[v.Name]
	if !exists {
		return nil, fmt.Errorf("variable '%s' not found in graph variables", v.Name)
	}

	return value, nil
}

// EnvReference represents a reference to an environment variable ($env:NAME)
type EnvReference struct {
	Name string
}

func (e EnvReference) IsStatic() bool {
	return false
}

func (e EnvReference) GetStaticValue() (any, bool) {
	return nil, false
}

func (e EnvReference) GetDynamicExpression() (DynamicValue, bool) {
	return DynamicValue{}, false
}

func (e EnvReference) Resolve(*Scope) (any, error) {
	value := os.Getenv(e.Name)
	if value == "" {
		return nil, fmt.Errorf("environment variable '%s' is not set or is empty", e.Name)
	}

	return value, nil
}

// ParseValue converts a decoded argument to a ValueSpec. Strings prefixed
// with "$js:", "$var:" or "$env:" become dynamic values
func ParseValue(v any) ValueSpec {
	str, ok := v.(string)
	if !ok {
		return StaticValue{Value: v}
	}

	switch {
	case strings.HasPrefix(str, "$js:"):
		return DynamicValue{
			Language:   "js",
			Expression: strings.TrimSpace(strings.TrimPrefix(str, "$js:")),
		}
	case strings.HasPrefix(str, "$var:"):
		return VariableReference{Name: strings.TrimSpace(strings.TrimPrefix(str, "$var:"))}
	case strings.HasPrefix(str, "$env:"):
		return EnvReference{Name: strings.TrimSpace(strings.TrimPrefix(str, "$env:"))}
	default:
		return StaticValue{Value: v}
	}
}
