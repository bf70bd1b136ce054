// Package variable implements the traced-variable core of the tracer: the
// provenance trackers, the variable kinds that wrap guest values, the factory
// that picks a kind for a host value, and the multi-tier dispatch that turns
// guest calls into symbolic operations or break-graph fallbacks.
package variable

import (
	"context"
	"fmt"

	"github.com/podhmo/go-trace/guard"
	"github.com/podhmo/go-trace/value"
)

// Kind is a string tag identifying a variable's role in dispatch.
type Kind string

const (
	CONST_VAR              Kind = "CONST"
	TENSOR_VAR             Kind = "TENSOR"
	OBJECT_VAR             Kind = "OBJECT"
	USER_FUNCTION_VAR      Kind = "USER_FUNCTION"
	NATIVE_API_VAR         Kind = "NATIVE_API"
	TENSOR_METHOD_VAR      Kind = "TENSOR_METHOD"
	BUILTIN_VAR            Kind = "BUILTIN"
	METHOD_VAR             Kind = "METHOD"
	GENERATOR_FUNCTION_VAR Kind = "GENERATOR_FUNCTION"
	GENERATOR_VAR          Kind = "GENERATOR"
	LAYER_VAR              Kind = "LAYER"
)

// Variable wraps one guest value observed during tracing, together with its
// provenance. A variable never outlives the graph it was created in; rolling
// the graph back past a variable's creation detaches it.
type Variable interface {
	// ID is the variable's name inside its graph (var_0, var_1, ...).
	ID() string
	Kind() Kind
	// Value returns the live host value backing the variable.
	Value() value.Value
	Tracker() Tracker
	// MakeGuards produces the boolean clauses that must hold, evaluated
	// against a future frame, for a trace involving this variable to be
	// replayed without re-tracing.
	MakeGuards() ([]guard.Expr, error)
	Inspect() string
}

// CallableVariable is a variable that can be invoked with traced arguments.
// Invoke returns the traced result, a *BreakGraphError when the call cannot
// be represented, or an *InternalError for integration mistakes.
type CallableVariable interface {
	Variable
	Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error)
}

// AttrAccessor is a variable supporting traced attribute access.
type AttrAccessor interface {
	GetAttr(name string) (Variable, error)
}

// VariableBase carries the common identity, value, graph and tracker state.
// Concrete kinds embed it and add their dispatch behavior.
type VariableBase struct {
	id      string
	val     value.Value
	graph   Graph
	tracker Tracker
}

func newBase(v value.Value, g Graph, t Tracker) VariableBase {
	return VariableBase{id: g.FreshName("var"), val: v, graph: g, tracker: t}
}

func (b *VariableBase) ID() string         { return b.id }
func (b *VariableBase) Value() value.Value { return b.val }
func (b *VariableBase) Tracker() Tracker   { return b.tracker }
func (b *VariableBase) Graph() Graph       { return b.graph }

// setTracker re-roots provenance. Only composite construction (method
// wrapping, function binding) may call this, exactly once per companion.
func (b *VariableBase) setTracker(t Tracker) { b.tracker = t }

type trackerSetter interface {
	setTracker(Tracker)
}

// MakeGuards is the default guard policy: one equality clause comparing the
// frame expression from the tracker against the value captured now.
func (b *VariableBase) MakeGuards() ([]guard.Expr, error) {
	frame, err := b.tracker.FrameSource()
	if err != nil {
		return nil, &InternalError{Message: fmt.Sprintf("guards for %s", b.id), Cause: err}
	}
	return []guard.Expr{frame.Equals("__"+b.id, b.val)}, nil
}
