package variable

import (
	"context"
	"log/slog"

	"github.com/podhmo/go-trace/value"
)

// Token identifies a saved trace-state snapshot. Tokens are only valid
// against the graph that issued them.
type Token uint64

// Graph is the trace-builder collaborator: the single mutable resource a
// trace attempt owns. Callable dispatch asks it to emit symbolic operations,
// to wrap newly observed values, and to checkpoint/restore around speculative
// inlining. Implementations are not safe for concurrent use; a trace attempt
// is single-threaded.
type Graph interface {
	// FromValue wraps a host value in the variable kind the factory picks.
	FromValue(v value.Value, t Tracker) (Variable, error)
	// FreshName issues the next name in the prefix's sequence. Restore
	// rewinds the sequences, so names repeat after a rollback.
	FreshName(prefix string) string

	// CallAPI emits one symbolic native-API operation.
	CallAPI(ctx context.Context, fn *value.NativeFunc, args []Variable, kwargs map[string]Variable) (Variable, error)
	// CallTensorMethod emits one symbolic intrinsic-method operation.
	CallTensorMethod(ctx context.Context, name string, recv Variable, args []Variable, kwargs map[string]Variable) (Variable, error)
	// CallLayer emits one symbolic apply-stateful-unit operation.
	CallLayer(ctx context.Context, layer Variable, args []Variable, kwargs map[string]Variable) (Variable, error)
	// RecordPrint records a print without adding to the value flow.
	RecordPrint(args []Variable)

	// Checkpoint snapshots the trace state; Restore rewinds to a snapshot,
	// discarding every mutation made since. Restore of an unknown token
	// panics: that is API misuse, not a guest condition.
	Checkpoint() Token
	Restore(tok Token)

	// Proxy returns the mutation-tracking attribute cache for owner's value,
	// creating it with load on first use. All attribute traffic for that
	// value must flow through the returned proxy.
	Proxy(owner Variable, load AttrLoader) *AttrProxy

	Logger() *slog.Logger
}

// AttrLoader populates a proxy entry on first read.
type AttrLoader func(name string) (Variable, error)

// InlineCaller runs a guest function's body symbolically against the shared
// graph, returning the traced result. Implemented by the inline executor.
type InlineCaller interface {
	InlineCall(ctx context.Context, fn *UserFunctionVariable, args []Variable, kwargs map[string]Variable) (Variable, error)
}
