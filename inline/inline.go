// Package inline runs guest function bodies symbolically: a nested instance
// of the guest interpreter that executes micro-code against the shared trace,
// wrapping every touched value in a traced variable. Checkpoint discipline
// belongs to the caller; the engine itself never restores state, it only
// reports break-graph conditions upward.
package inline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/podhmo/go-trace/value"
	"github.com/podhmo/go-trace/variable"
)

// MaxInlineDepth bounds recursive inlining. Exceeding it breaks the graph
// rather than recursing until the host stack gives out.
const MaxInlineDepth = 64

// Engine is the inline executor. One engine serves one tracer; depth tracks
// the strictly nested inline calls of a single trace attempt.
type Engine struct {
	globals map[string]value.Value
	logger  *slog.Logger
	depth   int
}

// NewEngine builds an engine over the guest program's global namespace.
func NewEngine(globals map[string]value.Value, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{globals: globals, logger: logger}
}

// InlineCall binds arguments to the callee's parameters and runs its body
// against the shared graph.
func (e *Engine) InlineCall(ctx context.Context, fn *variable.UserFunctionVariable, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	if e.depth >= MaxInlineDepth {
		return nil, variable.Breakf("inline depth limit %d reached", MaxInlineDepth)
	}
	e.depth++
	defer func() { e.depth-- }()

	f := fn.Fn()
	locals, err := bindParams(f, args, kwargs)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "inline", "fn", f.Name, "depth", e.depth)
	fr := &frame{fn: f, locals: locals, graph: fn.Graph(), engine: e}
	out, err := fr.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("inline %s: %w", f.Name, err)
	}
	return out, nil
}

// bindParams resolves positional and keyword arguments against the parameter
// list. Any mismatch is a break: the call cannot be represented, and direct
// execution will surface the guest's own error.
func bindParams(f *value.Function, args []variable.Variable, kwargs map[string]variable.Variable) (map[string]variable.Variable, error) {
	if len(args) > len(f.Params) {
		return nil, variable.Breakf("%s takes %d parameters, got %d positional", f.Name, len(f.Params), len(args))
	}
	locals := make(map[string]variable.Variable, len(f.Params))
	for i, a := range args {
		locals[f.Params[i]] = a
	}
	for name, v := range kwargs {
		if !slices.Contains(f.Params, name) {
			return nil, variable.Breakf("%s got an unexpected keyword %q", f.Name, name)
		}
		if _, dup := locals[name]; dup {
			return nil, variable.Breakf("%s got multiple values for %q", f.Name, name)
		}
		locals[name] = v
	}
	for _, p := range f.Params {
		if _, ok := locals[p]; !ok {
			return nil, variable.Breakf("%s missing argument %q", f.Name, p)
		}
	}
	return locals, nil
}

type frame struct {
	fn     *value.Function
	locals map[string]variable.Variable
	stack  []variable.Variable
	graph  variable.Graph
	engine *Engine
}

func (fr *frame) push(v variable.Variable) {
	fr.stack = append(fr.stack, v)
}

func (fr *frame) pop() (variable.Variable, error) {
	if len(fr.stack) == 0 {
		return nil, variable.Internalf("stack underflow in %s", fr.fn.Name)
	}
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v, nil
}

func (fr *frame) run(ctx context.Context) (variable.Variable, error) {
	for pc := 0; pc < len(fr.fn.Code); pc++ {
		in := fr.fn.Code[pc]
		switch in.Op {
		case value.LOAD_CONST:
			if in.Index < 0 || in.Index >= len(fr.fn.Consts) {
				return nil, variable.Internalf("%s: constant index %d out of range", fr.fn.Name, in.Index)
			}
			c := fr.fn.Consts[in.Index]
			v, err := fr.graph.FromValue(c, variable.NewConstTracker(c))
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case value.LOAD_LOCAL:
			v, ok := fr.locals[in.Name]
			if !ok {
				return nil, variable.Breakf("unbound local %q", in.Name)
			}
			fr.push(v)

		case value.LOAD_GLOBAL:
			gv, ok := fr.engine.globals[in.Name]
			if !ok {
				return nil, variable.Breakf("unknown global %q", in.Name)
			}
			v, err := fr.graph.FromValue(gv, variable.NewGlobalTracker(in.Name))
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case value.STORE_LOCAL:
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			fr.locals[in.Name] = v

		case value.GET_ATTR:
			obj, err := fr.pop()
			if err != nil {
				return nil, err
			}
			acc, ok := obj.(variable.AttrAccessor)
			if !ok {
				return nil, variable.Breakf("attribute access on %s is not traceable", obj.Kind())
			}
			v, err := acc.GetAttr(in.Name)
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case value.BINARY:
			right, err := fr.pop()
			if err != nil {
				return nil, err
			}
			left, err := fr.pop()
			if err != nil {
				return nil, err
			}
			v, err := fr.binary(ctx, in.Name, left, right)
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case value.CALL:
			kwargs := map[string]variable.Variable{}
			for i := len(in.KwNames) - 1; i >= 0; i-- {
				v, err := fr.pop()
				if err != nil {
					return nil, err
				}
				kwargs[in.KwNames[i]] = v
			}
			args := make([]variable.Variable, in.Argc)
			for i := in.Argc - 1; i >= 0; i-- {
				v, err := fr.pop()
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			callee, err := fr.pop()
			if err != nil {
				return nil, err
			}
			callable, ok := callee.(variable.CallableVariable)
			if !ok {
				return nil, variable.Breakf("calling a non-callable %s", callee.Kind())
			}
			out, err := callable.Invoke(ctx, args, kwargs)
			if err != nil {
				return nil, err
			}
			fr.push(out)

		case value.POP:
			if _, err := fr.pop(); err != nil {
				return nil, err
			}

		case value.RETURN:
			return fr.pop()

		default:
			return nil, variable.Breakf("unsupported instruction %s", in.Op)
		}
	}
	// falling off the end returns nil
	return fr.graph.FromValue(value.NIL, variable.NewConstTracker(value.NIL))
}

// binary routes an operator through builtin dispatch, the same path an
// explicit call to the builtin takes.
func (fr *frame) binary(ctx context.Context, op string, left, right variable.Variable) (variable.Variable, error) {
	bv, err := fr.graph.FromValue(&value.Builtin{Name: op}, variable.NewBuiltinTracker(op))
	if err != nil {
		return nil, err
	}
	callable, ok := bv.(variable.CallableVariable)
	if !ok {
		return nil, variable.Internalf("builtin %s wrapped as non-callable %s", op, bv.Inspect())
	}
	return callable.Invoke(ctx, []variable.Variable{left, right}, nil)
}

var _ variable.InlineCaller = (*Engine)(nil)
