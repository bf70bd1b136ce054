package gotrace

import (
	"context"

	"github.com/podhmo/go-trace/value"
	"github.com/podhmo/go-trace/variable"
)

// Builtins returns a global namespace preloaded with the builtin functions,
// the native API surface, and the debug intrinsics. Callers may add their own
// entries on top via WithGlobals.
func Builtins() map[string]value.Value {
	globals := map[string]value.Value{
		"print":   &value.Builtin{Name: "print"},
		"len":     &value.Builtin{Name: "len"},
		"bool":    &value.Builtin{Name: "bool"},
		"getattr": &value.Builtin{Name: "getattr"},

		"debug_assert":     value.AssertFunc,
		"debug_print":      value.DebugPrintFunc,
		"debug_breakpoint": value.BreakpointFunc,
	}
	for _, name := range []string{"add", "sub", "mul", "matmul", "relu", "shape"} {
		globals[name] = value.MustAPI(name)
	}
	return globals
}

// DefaultDispatcher builds the first-tier builtin table: constant folding for
// scalar operands, symbolic API emission when a tensor is involved, and the
// shape-level builtins (len, bool, print, getattr). Instance operands are
// deliberately absent so they fall through to the magic-method tier.
func DefaultDispatcher() (*variable.Dispatcher, error) {
	d := variable.NewDispatcher()

	type entry struct {
		name    string
		pattern variable.Pattern
		handler variable.Handler
	}
	var entries []entry

	for _, op := range []string{"add", "sub", "mul", "matmul"} {
		entries = append(entries,
			entry{op, pair(variable.CONST_VAR, variable.CONST_VAR), foldBinary(op)},
			entry{op, pair(variable.TENSOR_VAR, variable.TENSOR_VAR), symbolicBinary(op)},
			entry{op, pair(variable.TENSOR_VAR, variable.CONST_VAR), symbolicBinary(op)},
			entry{op, pair(variable.CONST_VAR, variable.TENSOR_VAR), symbolicBinary(op)},
		)
	}
	entries = append(entries,
		entry{"len", single(variable.TENSOR_VAR), lenOfTensor},
		entry{"len", single(variable.CONST_VAR), lenOfConst},
		entry{"bool", single(variable.TENSOR_VAR), truthiness},
		entry{"bool", single(variable.CONST_VAR), truthiness},
		entry{"print", variable.Pattern{Arity: variable.AnyArity}, recordPrint},
		entry{"getattr", variable.Pattern{Arity: 2}, getAttr},
		entry{"getattr", variable.Pattern{Arity: 3}, getAttr},
	)

	for _, e := range entries {
		if err := d.Register(e.name, e.pattern, e.handler); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func pair(a, b variable.Kind) variable.Pattern {
	return variable.Pattern{Arity: 2, Kinds: []variable.Kind{a, b}}
}

func single(k variable.Kind) variable.Pattern {
	return variable.Pattern{Arity: 1, Kinds: []variable.Kind{k}}
}

// foldBinary computes a scalar pair immediately. The result is synthesized
// from its operands, so it contributes no guard of its own.
func foldBinary(op string) variable.Handler {
	return func(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
		if len(kwargs) > 0 {
			return nil, variable.Breakf("%s takes no keyword arguments", op)
		}
		out, err := value.BinaryOp(op, args[0].Value(), args[1].Value())
		if err != nil {
			return nil, variable.Breakf("fold %s: %v", op, err)
		}
		return g.FromValue(out, variable.NewSynthesizedTracker(args...))
	}
}

// symbolicBinary emits one native-API statement for a tensor operand pair.
func symbolicBinary(op string) variable.Handler {
	return func(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
		if len(kwargs) > 0 {
			return nil, variable.Breakf("%s takes no keyword arguments", op)
		}
		return g.CallAPI(ctx, value.MustAPI(op), args, nil)
	}
}

// lenOfTensor folds to the leading dimension. The tensor's shape guard pins
// the geometry, so the folded constant stays valid across replays.
func lenOfTensor(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	tv, ok := args[0].(*variable.TensorVariable)
	if !ok {
		return nil, variable.Internalf("len: TENSOR-kinded %s is not a TensorVariable", args[0].Inspect())
	}
	shape := tv.Tensor().Shape
	if len(shape) == 0 {
		return nil, variable.Breakf("len of a zero-dimensional tensor")
	}
	return g.FromValue(&value.Integer{Value: shape[0]}, variable.NewSynthesizedTracker(args[0]))
}

func lenOfConst(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	s, ok := args[0].Value().(*value.String)
	if !ok {
		return nil, variable.Breakf("len of %s", args[0].Value().Kind())
	}
	return g.FromValue(&value.Integer{Value: int64(len(s.Value))}, variable.NewSynthesizedTracker(args[0]))
}

func truthiness(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	return g.FromValue(value.FromBool(value.Truthy(args[0].Value())), variable.NewSynthesizedTracker(args[0]))
}

// recordPrint keeps the side effect in the trace without contributing to the
// value flow.
func recordPrint(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	if len(kwargs) > 0 {
		return nil, variable.Breakf("print takes no keyword arguments")
	}
	g.RecordPrint(args)
	return g.FromValue(value.NIL, variable.NewConstTracker(value.NIL))
}

// getAttr resolves a constant attribute name against the first argument. The
// three-argument form returns the default only for break-level misses;
// internal errors always propagate.
func getAttr(ctx context.Context, g variable.Graph, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	if len(kwargs) > 0 {
		return nil, variable.Breakf("getattr takes no keyword arguments")
	}
	name, ok := args[1].Value().(*value.String)
	if !ok {
		return nil, variable.Breakf("getattr name must be a constant string, got %s", args[1].Inspect())
	}
	acc, ok := args[0].(variable.AttrAccessor)
	if !ok {
		return nil, variable.Breakf("getattr on %s", args[0].Kind())
	}
	attr, err := acc.GetAttr(name.Value)
	if err != nil {
		if len(args) == 3 && variable.Recoverable(err) {
			return args[2], nil
		}
		return nil, err
	}
	return attr, nil
}
