package models

import (
	"fmt"
	"strings"
)

// Spec is a {variant, args} tuple describing one node of a step tree.
// Arguments that are themselves a Spec declare child nodes
type Spec struct {
	Variant string
	Args    []any
}

// NewSpec creates a Spec for the named variant
func NewSpec(variant string, args ...any) Spec {
	return Spec{Variant: variant, Args: args}
}

// String renders the spec tree in call notation, e.g. arith(const(3), +, const(4))
func (s Spec) String() string {
	parts := make([]string, len(s.Args))
	for i, arg := range s.Args {
		switch a := arg.(type) {
		case Spec:
			parts[i] = a.String()
		case fmt.Stringer:
			parts[i] = a.String()
		default:
			parts[i] = fmt.Sprintf("%v", a)
		}
	}
	return s.Variant + "(" + strings.Join(parts, ", ") + ")"
}

// Children returns the arguments of the spec that declare child nodes, in
// order
func (s Spec) Children() []Spec {
	var res []Spec
	for _, arg := range s.Args {
		if c, ok := arg.(Spec); ok {
			res = append(res, c)
		}
	}
	return res
}

// WithChildren returns a copy of the spec whose child arguments are replaced,
// in order, by children. Surplus replacements are ignored
func (s Spec) WithChildren(children []Spec) Spec {
	args := make([]any, len(s.Args))
	next := 0
	for i, arg := range s.Args {
		if _, ok := arg.(Spec); ok && next < len(children) {
			args[i] = children[next]
			next++
			continue
		}
		args[i] = arg
	}
	return Spec{Variant: s.Variant, Args: args}
}
