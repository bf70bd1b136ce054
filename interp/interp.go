// Package interp executes guest micro-code directly, without tracing. It is
// the fallback path after a break-graph condition and the reference semantics
// the tracer is compared against in tests.
package interp

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/podhmo/go-trace/value"
)

// MaxCallDepth bounds direct recursion.
const MaxCallDepth = 256

// Interp evaluates guest functions over raw values.
type Interp struct {
	globals map[string]value.Value
	out     io.Writer
	depth   int
}

// Option configures an Interp.
type Option func(*Interp)

// WithStdout redirects guest print output.
func WithStdout(w io.Writer) Option {
	return func(ip *Interp) {
		if w != nil {
			ip.out = w
		}
	}
}

// New builds an interpreter over the guest program's global namespace.
func New(globals map[string]value.Value, options ...Option) *Interp {
	ip := &Interp{globals: globals, out: os.Stdout}
	for _, opt := range options {
		opt(ip)
	}
	return ip
}

// Call runs a guest function to completion. Errors are guest-level failures.
func (ip *Interp) Call(fn *value.Function, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if ip.depth >= MaxCallDepth {
		return nil, fmt.Errorf("call depth limit %d reached", MaxCallDepth)
	}
	ip.depth++
	defer func() { ip.depth-- }()

	if value.IsDebugIntrinsic(fn) {
		return ip.callDebugIntrinsic(fn, args)
	}
	if fn.IsGenerator {
		vals := append([]value.Value(nil), args...)
		for _, name := range sortedKeys(kwargs) {
			vals = append(vals, kwargs[name])
		}
		return &value.Generator{Fn: fn, Args: vals}, nil
	}
	locals, err := bindParams(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	fr := &frame{fn: fn, locals: locals, interp: ip}
	return fr.run()
}

func (ip *Interp) callDebugIntrinsic(fn *value.Function, args []value.Value) (value.Value, error) {
	switch fn {
	case value.AssertFunc:
		if len(args) != 1 {
			return nil, fmt.Errorf("debug_assert wants 1 argument, got %d", len(args))
		}
		if !value.Truthy(args[0]) {
			return nil, fmt.Errorf("assertion failed on %s", args[0].Inspect())
		}
	case value.DebugPrintFunc:
		parts := make([]string, 0, len(args)+1)
		parts = append(parts, "[trace]")
		for _, a := range args {
			parts = append(parts, a.Inspect())
		}
		fmt.Fprintln(ip.out, strings.Join(parts, " "))
	case value.BreakpointFunc:
	}
	return value.NIL, nil
}

func bindParams(fn *value.Function, args []value.Value, kwargs map[string]value.Value) (map[string]value.Value, error) {
	if len(args) > len(fn.Params) {
		return nil, fmt.Errorf("%s takes %d parameters, got %d positional", fn.Name, len(fn.Params), len(args))
	}
	locals := make(map[string]value.Value, len(fn.Params))
	for i, a := range args {
		locals[fn.Params[i]] = a
	}
	for name, v := range kwargs {
		if !slices.Contains(fn.Params, name) {
			return nil, fmt.Errorf("%s got an unexpected keyword %q", fn.Name, name)
		}
		if _, dup := locals[name]; dup {
			return nil, fmt.Errorf("%s got multiple values for %q", fn.Name, name)
		}
		locals[name] = v
	}
	for _, p := range fn.Params {
		if _, ok := locals[p]; !ok {
			return nil, fmt.Errorf("%s missing argument %q", fn.Name, p)
		}
	}
	return locals, nil
}

// tensorMethod is the value of a tensor attribute read: a callable pairing
// the receiver with an intrinsic method name.
type tensorMethod struct {
	recv *value.Tensor
	name string
}

func (t *tensorMethod) Kind() value.Kind { return value.BOUND_METHOD_KIND }
func (t *tensorMethod) Inspect() string {
	return fmt.Sprintf("<tensor method %s of %s>", t.name, t.recv.Inspect())
}

type frame struct {
	fn     *value.Function
	locals map[string]value.Value
	stack  []value.Value
	interp *Interp
}

func (fr *frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() (value.Value, error) {
	if len(fr.stack) == 0 {
		return nil, fmt.Errorf("stack underflow in %s", fr.fn.Name)
	}
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v, nil
}

func (fr *frame) run() (value.Value, error) {
	for pc := 0; pc < len(fr.fn.Code); pc++ {
		in := fr.fn.Code[pc]
		switch in.Op {
		case value.LOAD_CONST:
			if in.Index < 0 || in.Index >= len(fr.fn.Consts) {
				return nil, fmt.Errorf("%s: constant index %d out of range", fr.fn.Name, in.Index)
			}
			fr.push(fr.fn.Consts[in.Index])

		case value.LOAD_LOCAL:
			v, ok := fr.locals[in.Name]
			if !ok {
				return nil, fmt.Errorf("unbound local %q", in.Name)
			}
			fr.push(v)

		case value.LOAD_GLOBAL:
			v, ok := fr.interp.globals[in.Name]
			if !ok {
				return nil, fmt.Errorf("unknown global %q", in.Name)
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
			v, err := getAttr(obj, in.Name)
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
			v, err := fr.interp.binary(in.Name, left, right)
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case value.CALL:
			kwargs := map[string]value.Value{}
			for i := len(in.KwNames) - 1; i >= 0; i-- {
				v, err := fr.pop()
				if err != nil {
					return nil, err
				}
				kwargs[in.KwNames[i]] = v
			}
			args := make([]value.Value, in.Argc)
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
			out, err := fr.interp.apply(callee, args, kwargs)
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
			return nil, fmt.Errorf("unsupported instruction %s", in.Op)
		}
	}
	return value.NIL, nil
}

func getAttr(obj value.Value, name string) (value.Value, error) {
	switch o := obj.(type) {
	case *value.Instance:
		if v, ok := o.Attr(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%s has no attribute %q", o.Inspect(), name)
	case *value.Layer:
		if v, ok := o.Attr(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%s has no attribute %q", o.Inspect(), name)
	case *value.Tensor:
		if name == "shape" {
			return o.ShapeTensor(), nil
		}
		if value.IsTensorMethod(name) {
			return &tensorMethod{recv: o, name: name}, nil
		}
		return nil, fmt.Errorf("tensor has no attribute %q", name)
	case *value.Type:
		if fn, ok := o.LookupMethod(name); ok {
			return fn, nil
		}
		return nil, fmt.Errorf("type %s has no attribute %q", o.Name, name)
	default:
		return nil, fmt.Errorf("no attribute access on %s", obj.Kind())
	}
}

// apply dispatches a direct call over the callee's kind.
func (ip *Interp) apply(callee value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	switch c := callee.(type) {
	case *value.Function:
		return ip.Call(c, args, kwargs)
	case *value.BoundMethod:
		return ip.Call(c.Fn, append([]value.Value{c.Receiver}, args...), kwargs)
	case *tensorMethod:
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("tensor method %s takes no keywords", c.name)
		}
		return c.recv.CallMethod(c.name, args)
	case *value.NativeFunc:
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("native %s takes no keywords", c.Name)
		}
		return c.Fn(args...)
	case *value.Builtin:
		return ip.evalBuiltin(c.Name, args, kwargs)
	case *value.Layer:
		return ip.applyLayer(c, args, kwargs)
	default:
		return nil, fmt.Errorf("%s is not callable", callee.Kind())
	}
}

// applyLayer runs a stateful unit directly: pre hooks, then the unit's own
// forward (native unit, guest __call__, or sublayer chain), then post hooks.
func (ip *Interp) applyLayer(l *value.Layer, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	for _, h := range l.PreHooks {
		if _, err := ip.Call(h, append([]value.Value{l}, args...), nil); err != nil {
			return nil, err
		}
	}
	out, err := ip.layerForward(l, args, kwargs)
	if err != nil {
		return nil, err
	}
	for _, h := range l.PostHooks {
		if _, err := ip.Call(h, []value.Value{l, out}, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ip *Interp) layerForward(l *value.Layer, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if callFn, ok := l.Class.LookupMethod("__call__"); ok {
		return ip.Call(callFn, append([]value.Value{l}, args...), kwargs)
	}
	if l.Builtin && l.Unit != nil {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("unit %s takes no keywords", l.Unit.Name)
		}
		return l.Unit.Fn(args...)
	}
	if l.Composite() {
		if len(args) != 1 || len(kwargs) > 0 {
			return nil, fmt.Errorf("sublayer chain wants exactly 1 argument")
		}
		out := args[0]
		for _, sub := range l.Sublayers {
			var err error
			out, err = ip.applyLayer(sub, []value.Value{out}, nil)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("layer %s is not callable", l.Inspect())
}

// binary computes an operator: direct arithmetic first, then the operand
// types' special methods. A reflected method is found on the last operand's
// type but called with the arguments in their original order, matching what
// the tracer records.
func (ip *Interp) binary(op string, left, right value.Value) (value.Value, error) {
	out, err := value.BinaryOp(op, left, right)
	if err == nil {
		return out, nil
	}
	if fn, ok := value.TypeOf(left).LookupMethod("__" + op + "__"); ok {
		return ip.Call(fn, []value.Value{left, right}, nil)
	}
	if fn, ok := value.TypeOf(right).LookupMethod("__r" + op + "__"); ok {
		return ip.Call(fn, []value.Value{left, right}, nil)
	}
	return nil, err
}

func (ip *Interp) evalBuiltin(name string, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	switch name {
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Inspect()
		}
		fmt.Fprintln(ip.out, strings.Join(parts, " "))
		return value.NIL, nil
	case "len":
		if len(args) != 1 {
			return nil, fmt.Errorf("len wants 1 argument, got %d", len(args))
		}
		switch a := args[0].(type) {
		case *value.String:
			return &value.Integer{Value: int64(len(a.Value))}, nil
		case *value.Tensor:
			if len(a.Shape) == 0 {
				return nil, fmt.Errorf("len of a zero-dimensional tensor")
			}
			return &value.Integer{Value: a.Shape[0]}, nil
		case *value.Instance:
			if fn, ok := a.Class.LookupMethod("__len__"); ok {
				return ip.Call(fn, []value.Value{a}, nil)
			}
		}
		return nil, fmt.Errorf("len of %s", args[0].Kind())
	case "bool":
		if len(args) != 1 {
			return nil, fmt.Errorf("bool wants 1 argument, got %d", len(args))
		}
		return value.FromBool(value.Truthy(args[0])), nil
	case "getattr":
		if len(args) != 2 && len(args) != 3 {
			return nil, fmt.Errorf("getattr wants 2 or 3 arguments, got %d", len(args))
		}
		attr, ok := args[1].(*value.String)
		if !ok {
			return nil, fmt.Errorf("getattr name must be a string, got %s", args[1].Kind())
		}
		out, err := getAttr(args[0], attr.Value)
		if err != nil && len(args) == 3 {
			return args[2], nil
		}
		return out, err
	case "add", "sub", "mul", "matmul":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s wants 2 arguments, got %d", name, len(args))
		}
		return ip.binary(name, args[0], args[1])
	default:
		return nil, fmt.Errorf("unknown builtin %q", name)
	}
}

func sortedKeys(kwargs map[string]value.Value) []string {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
