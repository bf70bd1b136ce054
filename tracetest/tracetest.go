// Package tracetest is the shared harness for exercising traces in tests: a
// preconfigured tracer with must-style wrappers, guest-code builders for the
// common call shapes, and program comparison helpers.
package tracetest

import (
	"context"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	gotrace "github.com/podhmo/go-trace"
	"github.com/podhmo/go-trace/graph"
	"github.com/podhmo/go-trace/interp"
	"github.com/podhmo/go-trace/value"
)

// Runner holds the per-suite trace configuration. The zero value traces
// against the default builtins.
type Runner struct {
	// Globals are merged over the default builtin namespace.
	Globals map[string]value.Value
	// Options apply to every tracer the runner builds.
	Options []gotrace.Option
}

func (r *Runner) globals() map[string]value.Value {
	merged := gotrace.Builtins()
	for name, v := range r.Globals {
		merged[name] = v
	}
	return merged
}

// Trace runs one trace attempt with a fresh tracer.
func (r *Runner) Trace(t *testing.T, fn *value.Function, args []value.Value, kwargs map[string]value.Value) (*gotrace.Result, error) {
	t.Helper()
	options := append([]gotrace.Option{
		gotrace.WithGlobals(r.Globals),
		gotrace.WithStdout(io.Discard),
	}, r.Options...)
	tr, err := gotrace.New(options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr.Trace(context.Background(), fn, args, kwargs)
}

// MustTrace is Trace failing the test on error or fallback.
func (r *Runner) MustTrace(t *testing.T, fn *value.Function, args []value.Value, kwargs map[string]value.Value) *gotrace.Result {
	t.Helper()
	res, err := r.Trace(t, fn, args, kwargs)
	if err != nil {
		t.Fatalf("trace %s: %v", fn.Name, err)
	}
	if res.Fallback {
		t.Fatalf("trace %s fell back: %s", fn.Name, res.Reason)
	}
	return res
}

// Direct runs fn without tracing, against the runner's globals.
func (r *Runner) Direct(t *testing.T, fn *value.Function, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	t.Helper()
	return interp.New(r.globals(), interp.WithStdout(io.Discard)).Call(fn, args, kwargs)
}

// AssertAgrees traces fn and runs it directly, failing unless both succeed
// with equal outputs. Only meaningful for programs whose result is a concrete
// value: a symbolic tensor result is a placeholder and never compares equal
// to the directly computed tensor.
func (r *Runner) AssertAgrees(t *testing.T, fn *value.Function, args []value.Value, kwargs map[string]value.Value) *gotrace.Result {
	t.Helper()
	res, err := r.Trace(t, fn, args, kwargs)
	if err != nil {
		t.Fatalf("trace %s: %v", fn.Name, err)
	}
	direct, err := r.Direct(t, fn, args, kwargs)
	if err != nil {
		t.Fatalf("direct %s: %v", fn.Name, err)
	}
	if !value.Equal(res.Output, direct) {
		t.Errorf("%s: trace and direct disagree: %s vs %s", fn.Name, res.Output.Inspect(), direct.Inspect())
	}
	return res
}

// DiffStatements compares a program's statements against the expectation,
// ignoring trace identity.
func DiffStatements(want []graph.Statement, got *graph.Program) string {
	if got == nil {
		return cmp.Diff(want, []graph.Statement(nil))
	}
	return cmp.Diff(want, got.Statements)
}

// --- guest-code builders ---

// CallGlobal builds fn(params...) { return global(params...) }.
func CallGlobal(name, global string, params ...string) *value.Function {
	code := []value.Instr{value.LoadGlobal(global)}
	for _, p := range params {
		code = append(code, value.LoadLocal(p))
	}
	code = append(code, value.Call(len(params)), value.Return())
	return &value.Function{Name: name, Params: params, Code: code}
}

// BinaryFn builds fn(a, b) { return a <op> b }.
func BinaryFn(name, op string) *value.Function {
	return &value.Function{
		Name:   name,
		Params: []string{"a", "b"},
		Code: []value.Instr{
			value.LoadLocal("a"),
			value.LoadLocal("b"),
			value.Binary(op),
			value.Return(),
		},
	}
}

// MethodFn builds fn(recv, args...) { return recv.method(args...) }.
func MethodFn(name, method string, argNames ...string) *value.Function {
	params := append([]string{"recv"}, argNames...)
	code := []value.Instr{
		value.LoadLocal("recv"),
		value.GetAttr(method),
	}
	for _, a := range argNames {
		code = append(code, value.LoadLocal(a))
	}
	code = append(code, value.Call(len(argNames)), value.Return())
	return &value.Function{Name: name, Params: params, Code: code}
}
