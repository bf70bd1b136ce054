package value

import "fmt"

// Function is a guest code unit: named parameters over micro-instructions.
// Identity (pointer) is the function's identity in dispatch and caching.
type Function struct {
	Name        string
	Params      []string
	Consts      []Value
	Code        []Instr
	IsGenerator bool
}

func (f *Function) Kind() Kind      { return FUNCTION_KIND }
func (f *Function) Inspect() string { return fmt.Sprintf("<function %s>", f.Name) }

// Builtin names a guest-language builtin operation (len, print, add, ...).
// The builtin carries no behavior of its own: the tracer resolves it through
// the dispatcher and the direct evaluator through evalBuiltin.
type Builtin struct {
	Name string
}

func (b *Builtin) Kind() Kind      { return BUILTIN_KIND }
func (b *Builtin) Inspect() string { return fmt.Sprintf("<builtin %s>", b.Name) }

// NativeFunc is a host-implemented domain API, the tensor-library surface the
// guest calls into. Fn is the direct implementation used by un-traced
// execution; the tracer only records the call symbolically.
type NativeFunc struct {
	Name string
	Fn   func(args ...Value) (Value, error)
}

func (n *NativeFunc) Kind() Kind      { return NATIVE_FUNC_KIND }
func (n *NativeFunc) Inspect() string { return fmt.Sprintf("<native func %s>", n.Name) }

// Generator is a suspended generator: the function plus the captured
// arguments. Construction is eager, iteration is not modeled here.
type Generator struct {
	Fn   *Function
	Args []Value
}

func (g *Generator) Kind() Kind { return GENERATOR_KIND }
func (g *Generator) Inspect() string {
	return fmt.Sprintf("<generator %s(%s)>", g.Fn.Name, inspectList(g.Args))
}

// Debug intrinsics. Guest programs may call these; the tracer recognizes them
// by identity and executes them immediately against materialized values
// instead of emitting trace nodes. They carry no code of their own.
var (
	AssertFunc     = &Function{Name: "debug_assert", Params: []string{"cond"}}
	DebugPrintFunc = &Function{Name: "debug_print"}
	BreakpointFunc = &Function{Name: "debug_breakpoint"}
)

// IsDebugIntrinsic reports whether fn is one of the debug sentinels.
func IsDebugIntrinsic(fn *Function) bool {
	return fn == AssertFunc || fn == DebugPrintFunc || fn == BreakpointFunc
}

// apis is the registry of core domain APIs. Each entry has a real direct
// implementation so fallback execution computes the same result the compiled
// trace would.
var apis = map[string]*NativeFunc{}

func registerAPI(name string, fn func(args ...Value) (Value, error)) *NativeFunc {
	nf := &NativeFunc{Name: name, Fn: fn}
	apis[name] = nf
	return nf
}

// API looks up a registered domain API by name.
func API(name string) (*NativeFunc, bool) {
	nf, ok := apis[name]
	return nf, ok
}

// MustAPI is API for names known at compile time.
func MustAPI(name string) *NativeFunc {
	nf, ok := apis[name]
	if !ok {
		panic(fmt.Sprintf("value: unknown api %q", name))
	}
	return nf
}

func binaryAPI(op string) func(args ...Value) (Value, error) {
	return func(args ...Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: want 2 arguments, got %d", op, len(args))
		}
		return BinaryOp(op, args[0], args[1])
	}
}

var (
	AddAPI    = registerAPI("add", binaryAPI("add"))
	SubAPI    = registerAPI("sub", binaryAPI("sub"))
	MulAPI    = registerAPI("mul", binaryAPI("mul"))
	MatmulAPI = registerAPI("matmul", binaryAPI("matmul"))
	ReluAPI   = registerAPI("relu", func(args ...Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("relu: want 1 argument, got %d", len(args))
		}
		t, ok := args[0].(*Tensor)
		if !ok {
			return nil, fmt.Errorf("relu: want tensor, got %s", args[0].Kind())
		}
		return t.mapElems(func(x float64) float64 {
			if x < 0 {
				return 0
			}
			return x
		}), nil
	})
	ShapeAPI  = registerAPI("shape", func(args ...Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("shape: want 1 argument, got %d", len(args))
		}
		t, ok := args[0].(*Tensor)
		if !ok {
			return nil, fmt.Errorf("shape: want tensor, got %s", args[0].Kind())
		}
		return t.ShapeTensor(), nil
	})
)
