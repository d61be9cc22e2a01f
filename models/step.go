package models

import "log/slog"

// ChildID identifies a child of a step by its position in the child list
// returned from Init
type ChildID int

// LastChild is passed to Done when the engine signals completion of a node
// that has no children
const LastChild ChildID = -1

// Step is the lifecycle contract every node of a dataflow graph implements.
// The engine drives one instance through
// constructed -> started -> (emitting)* -> done -> torn down
// and never calls an instance from more than one goroutine at a time
type Step interface {
	// Init builds the variant's private state from its arguments and
	// returns the ordered specifications of its children. It must not send
	// anything; an error aborts construction of the node
	Init(args []any) ([]Spec, error)

	// Describe renders the node for diagnostics and graph export
	Describe() string

	// Start is invoked once per run with the run's payload
	Start(payload any) Result

	// Emit is invoked each time a child produces a value. Returning Ok
	// suppresses propagation, Forward propagates a value to the parent
	Emit(child ChildID, data any) Result

	// Done is invoked when the node's children will emit no further
	// values. The engine always signals done upward afterwards
	Done(child ChildID)
}

// Folder is implemented by variants whose node can be rewritten by the
// optimize pass. Fold receives the already optimized child specifications
// and returns a replacement for the node, or false to keep it
type Folder interface {
	Fold(children []Spec) (Spec, bool)
}

// LoggerSetter is implemented by variants that report dropped values. The
// engine hands every such instance a logger scoped to its run and node
// before Start
type LoggerSetter interface {
	SetLogger(logger *slog.Logger)
}

// Result is the outcome of Start or Emit
type Result struct {
	Value   any
	Forward bool
}

// Ok returns a Result that propagates nothing
func Ok() Result {
	return Result{}
}

// Forward returns a Result that propagates value to the parent
func Forward(value any) Result {
	return Result{Value: value, Forward: true}
}
