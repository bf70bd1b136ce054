// Package gotrace traces guest function calls into symbolic programs. A trace
// attempt runs the function's micro-code against a trace graph, wrapping every
// touched value in a provenance-carrying variable; the finished trace is a
// statement program plus the guard conditions under which it may be replayed.
// Calls that cannot be represented fall back to direct execution.
package gotrace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/podhmo/go-trace/cache"
	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/graph"
	"github.com/podhmo/go-trace/guard"
	"github.com/podhmo/go-trace/inline"
	"github.com/podhmo/go-trace/interp"
	"github.com/podhmo/go-trace/value"
	"github.com/podhmo/go-trace/variable"
)

// Tracer turns guest function calls into traces. A Tracer is safe to reuse
// across calls; each Trace owns a fresh graph.
type Tracer struct {
	globals    map[string]value.Value
	tables     *classify.Tables
	dispatcher *variable.Dispatcher
	cache      *cache.Cache
	logger     *slog.Logger
	stdout     io.Writer
}

// New builds a Tracer. Without options it carries the default classification
// tables, the default builtin dispatcher, and a global namespace preloaded
// with Builtins().
func New(options ...Option) (*Tracer, error) {
	t := &Tracer{
		globals: Builtins(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		stdout:  os.Stdout,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.tables == nil {
		tables, err := classify.Default()
		if err != nil {
			return nil, fmt.Errorf("load classification tables: %w", err)
		}
		t.tables = tables
	}
	if t.dispatcher == nil {
		d, err := DefaultDispatcher()
		if err != nil {
			return nil, fmt.Errorf("build dispatcher: %w", err)
		}
		t.dispatcher = d
	}
	return t, nil
}

// Result is the outcome of one trace attempt.
type Result struct {
	// Output is the call's value: the traced result's backing value on a
	// successful trace (a placeholder for symbolic tensors), or the real
	// result of direct execution on fallback.
	Output value.Value
	// Var is the traced result variable; nil on fallback.
	Var variable.Variable
	// Program is the symbolic trace; nil on fallback.
	Program *graph.Program
	// Guards are the replay conditions collected from the trace's
	// frame-origin inputs; nil on fallback.
	Guards []guard.Expr
	// Fallback reports that tracing was abandoned and the call ran directly.
	Fallback bool
	// Reason is the break-graph condition that forced the fallback.
	Reason string
	// TraceID identifies the attempt in logs and cache entries.
	TraceID string
}

// GuardSources renders the guards in their deterministic textual form.
func (r *Result) GuardSources() []string {
	return guard.Render(r.Guards)
}

// Trace runs fn symbolically against args and kwargs. A break-graph condition
// anywhere in the call tree abandons the trace and executes the call
// directly; the Result then carries Fallback and the reason. Internal errors
// and guest-level failures of direct execution are returned as errors.
func (t *Tracer) Trace(ctx context.Context, fn *value.Function, args []value.Value, kwargs map[string]value.Value) (*Result, error) {
	eng := inline.NewEngine(t.globals, t.logger)
	factory := variable.NewFactory()
	deps := variable.Deps{Tables: t.tables, Dispatcher: t.dispatcher, Inliner: eng}
	if err := variable.RegisterDefaults(factory, deps); err != nil {
		return nil, fmt.Errorf("register constructors: %w", err)
	}
	g := graph.New(factory, graph.WithLogger(t.logger))
	logger := g.Logger()

	fnVar, err := g.FromValue(fn, variable.NewGlobalTracker(fn.Name))
	if err != nil {
		return nil, err
	}
	callable, ok := fnVar.(variable.CallableVariable)
	if !ok {
		return nil, variable.Internalf("%s wrapped as non-callable %s", fn.Name, fnVar.Inspect())
	}

	argVars := make([]variable.Variable, len(args))
	for i, a := range args {
		name := fmt.Sprintf("arg%d", i)
		if i < len(fn.Params) {
			name = fn.Params[i]
		}
		v, err := g.FromValue(a, variable.NewLocalTracker(name))
		if err != nil {
			return nil, err
		}
		argVars[i] = v
	}
	kwargVars := make(map[string]variable.Variable, len(kwargs))
	for _, name := range sortedNames(kwargs) {
		v, err := g.FromValue(kwargs[name], variable.NewLocalTracker(name))
		if err != nil {
			return nil, err
		}
		kwargVars[name] = v
	}

	logger.InfoContext(ctx, "trace", "fn", fn.Name, "args", len(args), "kwargs", len(kwargs))
	out, err := callable.Invoke(ctx, argVars, kwargVars)
	if err != nil {
		if !variable.Recoverable(err) {
			return nil, err
		}
		logger.InfoContext(ctx, "fallback to direct execution", "fn", fn.Name, "reason", err.Error())
		return t.fallback(g, fn, args, kwargs, err)
	}

	guards, err := collectGuards(g)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "trace complete", "statements", len(g.Statements()), "guards", len(guards))
	return &Result{
		Output:  out.Value(),
		Var:     out,
		Program: g.Program(),
		Guards:  guards,
		TraceID: g.TraceID().String(),
	}, nil
}

// TraceCached returns the stored trace payload for fn, tracing and storing
// it on a miss. Entries are keyed by function name; concurrent misses for the
// same key share one trace attempt. A function that breaks the graph has no
// payload to store and returns an error here; use Trace when transparent
// fallback execution is wanted. Without a configured cache every call traces.
func (t *Tracer) TraceCached(ctx context.Context, fn *value.Function, args []value.Value, kwargs map[string]value.Value) (*cache.Entry, error) {
	compute := func(ctx context.Context) (*cache.Entry, error) {
		res, err := t.Trace(ctx, fn, args, kwargs)
		if err != nil {
			return nil, err
		}
		if res.Fallback {
			return nil, fmt.Errorf("%s is not traceable: %s", fn.Name, res.Reason)
		}
		return cache.NewEntry(fn.Name, res.Program, res.GuardSources()), nil
	}
	if t.cache == nil {
		return compute(ctx)
	}
	return t.cache.GetOrCompute(ctx, fn.Name, compute)
}

func (t *Tracer) fallback(g *graph.Graph, fn *value.Function, args []value.Value, kwargs map[string]value.Value, cause error) (*Result, error) {
	ip := interp.New(t.globals, interp.WithStdout(t.stdout))
	out, err := ip.Call(fn, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("direct execution of %s: %w", fn.Name, err)
	}
	return &Result{
		Output:   out,
		Fallback: true,
		Reason:   cause.Error(),
		TraceID:  g.TraceID().String(),
	}, nil
}

// sortedNames keeps input registration order deterministic for keyword
// arguments.
func sortedNames(kwargs map[string]value.Value) []string {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// collectGuards gathers the replay conditions of every frame-origin input in
// observation order.
func collectGuards(g *graph.Graph) ([]guard.Expr, error) {
	var out []guard.Expr
	for _, in := range g.Inputs() {
		gs, err := in.MakeGuards()
		if err != nil {
			return nil, err
		}
		out = append(out, gs...)
	}
	return out, nil
}
