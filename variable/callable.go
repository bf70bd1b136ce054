package variable

import (
	"context"
	"fmt"
	"sort"

	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/guard"
	"github.com/podhmo/go-trace/value"
)

// --- UserFunctionVariable ---

// UserFunctionVariable wraps a guest function. Invoking it inlines the body
// into the current trace under checkpoint protection.
type UserFunctionVariable struct {
	VariableBase
	fn      *value.Function
	inliner InlineCaller
}

func NewUserFunction(fn *value.Function, g Graph, t Tracker, inliner InlineCaller) *UserFunctionVariable {
	return &UserFunctionVariable{VariableBase: newBase(fn, g, t), fn: fn, inliner: inliner}
}

func (v *UserFunctionVariable) Kind() Kind           { return USER_FUNCTION_VAR }
func (v *UserFunctionVariable) Fn() *value.Function  { return v.fn }
func (v *UserFunctionVariable) Inspect() string {
	return fmt.Sprintf("UserFunctionVariable(%s)", v.fn.Name)
}

func (v *UserFunctionVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if value.IsDebugIntrinsic(v.fn) {
		return v.invokeDebugIntrinsic(ctx, args)
	}
	if v.inliner == nil {
		return nil, Internalf("no inline executor wired for %s", v.fn.Name)
	}
	g := v.Graph()
	cp := g.Checkpoint()
	g.Logger().DebugContext(ctx, "inline call", "fn", v.fn.Name, "args", len(args))
	out, err := v.inliner.InlineCall(ctx, v, args, kwargs)
	if err != nil {
		if !Recoverable(err) {
			return nil, err
		}
		// a failed attempt must leave no residual trace state
		g.Restore(cp)
		g.Logger().DebugContext(ctx, "break graph", "fn", v.fn.Name, "reason", err.Error())
		return nil, &BreakGraphError{Reason: fmt.Sprintf("inline of %s failed", v.fn.Name), Cause: err}
	}
	return out, nil
}

// invokeDebugIntrinsic executes the debug escape hatches immediately against
// materialized values. No trace nodes are emitted for them.
func (v *UserFunctionVariable) invokeDebugIntrinsic(ctx context.Context, args []Variable) (Variable, error) {
	g := v.Graph()
	switch v.fn {
	case value.AssertFunc:
		if len(args) != 1 {
			return nil, Internalf("debug_assert wants 1 argument, got %d", len(args))
		}
		if !value.Truthy(args[0].Value()) {
			return nil, Internalf("debug assertion failed on %s", args[0].Inspect())
		}
	case value.DebugPrintFunc:
		prefix := &value.String{Value: "[trace]"}
		prefixVar, err := g.FromValue(prefix, NewConstTracker(prefix))
		if err != nil {
			return nil, err
		}
		g.RecordPrint(append([]Variable{prefixVar}, args...))
	case value.BreakpointFunc:
		// a place to hang a host debugger
	}
	return g.FromValue(value.NIL, NewConstTracker(value.NIL))
}

// Bind packages the function as a method bound to instance. The function's
// provenance is re-rooted through the instance's class, so guards reconstruct
// instance.__class__.<name> instead of whatever the function was created with.
func (v *UserFunctionVariable) Bind(instance Variable, name string) (*MethodVariable, error) {
	g := v.Graph()
	classVar, err := g.FromValue(value.TypeOf(instance.Value()), NewGetAttrTracker(instance, "__class__"))
	if err != nil {
		return nil, err
	}
	v.setTracker(NewGetAttrTracker(classVar, name))
	bm := &value.BoundMethod{Receiver: instance.Value(), Fn: v.fn}
	return newMethod(bm, instance, v, g, NewGetAttrTracker(instance, name)), nil
}

// --- APIVariable ---

// APIVariable wraps a native domain API. Supported APIs become one symbolic
// operation; listed-unsupported ones break the graph before any mutation.
type APIVariable struct {
	VariableBase
	fn     *value.NativeFunc
	tables *classify.Tables
}

func NewAPI(fn *value.NativeFunc, g Graph, t Tracker, tables *classify.Tables) *APIVariable {
	return &APIVariable{VariableBase: newBase(fn, g, t), fn: fn, tables: tables}
}

func (v *APIVariable) Kind() Kind          { return NATIVE_API_VAR }
func (v *APIVariable) API() *value.NativeFunc { return v.fn }
func (v *APIVariable) Inspect() string {
	return fmt.Sprintf("APIVariable(%s)", v.fn.Name)
}

func (v *APIVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if v.tables.IsUnsupportedAPI(v.fn.Name) {
		return nil, Breakf("call to unsupported api %s", v.fn.Name)
	}
	return v.Graph().CallAPI(ctx, v.fn, args, kwargs)
}

// --- TensorMethodVariable ---

// TensorMethodVariable names an intrinsic method of a traced tensor. There is
// no host function object behind it; the wrapped value is nil and only the
// (receiver, name) pair matters.
type TensorMethodVariable struct {
	VariableBase
	name   string
	recv   Variable
	tables *classify.Tables
}

func newTensorMethod(name string, recv Variable, g Graph, t Tracker, tables *classify.Tables) *TensorMethodVariable {
	return &TensorMethodVariable{VariableBase: newBase(value.NIL, g, t), name: name, recv: recv, tables: tables}
}

func (v *TensorMethodVariable) Kind() Kind   { return TENSOR_METHOD_VAR }
func (v *TensorMethodVariable) Name() string { return v.name }
func (v *TensorMethodVariable) Inspect() string {
	return fmt.Sprintf("TensorMethodVariable(%s.%s)", v.recv.ID(), v.name)
}

func (v *TensorMethodVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if v.tables.IsUnsupportedTensorMethod(v.name) {
		return nil, Breakf("call to unsupported tensor method %s", v.name)
	}
	return v.Graph().CallTensorMethod(ctx, v.name, v.recv, args, kwargs)
}

// --- BuiltinVariable ---

// BuiltinVariable wraps a guest builtin. Resolution is three tiers: the
// dispatcher table by argument shape, then the magic-method protocol, then a
// break naming the builtin.
type BuiltinVariable struct {
	VariableBase
	b          *value.Builtin
	dispatcher *Dispatcher
	tables     *classify.Tables
}

func NewBuiltin(b *value.Builtin, g Graph, t Tracker, d *Dispatcher, tables *classify.Tables) *BuiltinVariable {
	return &BuiltinVariable{VariableBase: newBase(b, g, t), b: b, dispatcher: d, tables: tables}
}

func (v *BuiltinVariable) Kind() Kind   { return BUILTIN_VAR }
func (v *BuiltinVariable) Name() string { return v.b.Name }
func (v *BuiltinVariable) Inspect() string {
	return fmt.Sprintf("BuiltinVariable(%s)", v.b.Name)
}

func (v *BuiltinVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	g := v.Graph()
	if h, ok := v.dispatcher.Dispatch(v.b.Name, args); ok {
		g.Logger().DebugContext(ctx, "dispatch", "builtin", v.b.Name, "args", len(args))
		return h(ctx, g, args, kwargs)
	}
	out, handled, err := resolveMagicCall(ctx, g, v.tables, v.b.Name, args)
	if err != nil {
		return nil, err
	}
	if handled {
		return out, nil
	}
	return nil, Breakf("builtin %s does not accept the given arguments", v.b.Name)
}

// --- MethodVariable ---

// MethodVariable pairs a bound instance with the function variable it
// delegates to. The pair is created together and owned exclusively by the
// method; nothing else may hold those variables under different trackers.
type MethodVariable struct {
	VariableBase
	instance Variable
	fn       CallableVariable
}

func newMethod(val value.Value, instance Variable, fn CallableVariable, g Graph, t Tracker) *MethodVariable {
	return &MethodVariable{VariableBase: newBase(val, g, t), instance: instance, fn: fn}
}

func (v *MethodVariable) Kind() Kind            { return METHOD_VAR }
func (v *MethodVariable) Instance() Variable    { return v.instance }
func (v *MethodVariable) Fn() CallableVariable  { return v.fn }
func (v *MethodVariable) Inspect() string {
	return fmt.Sprintf("MethodVariable(%s on %s)", v.fn.Inspect(), v.instance.Inspect())
}

func (v *MethodVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	return v.fn.Invoke(ctx, append([]Variable{v.instance}, args...), kwargs)
}

// WrapMethod wraps a host bound method. Companions the caller does not supply
// are created dangling first, then re-rooted at the finished composite: their
// provenance becomes attribute access (__self__, __func__) on the method
// itself. The two phases exist because those trackers need the composite as
// their base, which cannot exist before its parts do. Supplied companions
// keep their own trackers.
func WrapMethod(bm *value.BoundMethod, g Graph, t Tracker, instance Variable, fn CallableVariable) (*MethodVariable, error) {
	rerootInstance := instance == nil
	rerootFn := fn == nil
	if instance == nil {
		iv, err := g.FromValue(bm.Receiver, NewDanglingTracker())
		if err != nil {
			return nil, err
		}
		instance = iv
	}
	if fn == nil {
		fv, err := g.FromValue(bm.Fn, NewDanglingTracker())
		if err != nil {
			return nil, err
		}
		callable, ok := fv.(CallableVariable)
		if !ok {
			return nil, Internalf("bound function %s wrapped as non-callable %s", bm.Fn.Name, fv.Inspect())
		}
		fn = callable
	}
	method := newMethod(bm, instance, fn, g, t)
	if rerootInstance {
		if err := reroot(instance, NewGetAttrTracker(method, "__self__")); err != nil {
			return nil, err
		}
	}
	if rerootFn {
		if err := reroot(fn, NewGetAttrTracker(method, "__func__")); err != nil {
			return nil, err
		}
	}
	return method, nil
}

func reroot(v Variable, t Tracker) error {
	ts, ok := v.(trackerSetter)
	if !ok {
		return Internalf("cannot re-root tracker of %s", v.Inspect())
	}
	ts.setTracker(t)
	return nil
}

// --- GeneratorFunctionVariable ---

// GeneratorFunctionVariable wraps a generator-producing guest function.
// Invocation never traces the body: it materializes the arguments into a live
// generator object and wraps that, synthesized from this variable.
type GeneratorFunctionVariable struct {
	VariableBase
	fn *value.Function
}

func NewGeneratorFunction(fn *value.Function, g Graph, t Tracker) *GeneratorFunctionVariable {
	return &GeneratorFunctionVariable{VariableBase: newBase(fn, g, t), fn: fn}
}

func (v *GeneratorFunctionVariable) Kind() Kind          { return GENERATOR_FUNCTION_VAR }
func (v *GeneratorFunctionVariable) Fn() *value.Function { return v.fn }
func (v *GeneratorFunctionVariable) Inspect() string {
	return fmt.Sprintf("GeneratorFunctionVariable(%s)", v.fn.Name)
}

func (v *GeneratorFunctionVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	vals := make([]value.Value, 0, len(args)+len(kwargs))
	for _, a := range args {
		vals = append(vals, a.Value())
	}
	for _, name := range sortedNames(kwargs) {
		vals = append(vals, kwargs[name].Value())
	}
	gen := &value.Generator{Fn: v.fn, Args: vals}
	return v.Graph().FromValue(gen, NewSynthesizedTracker(v))
}

// --- Layer variables ---

// LayerVariable is the shared base of stateful callable variables. All
// attribute traffic flows through the graph's mutation-tracking proxy, and
// guard production always pins both object identity and training mode.
type LayerVariable struct {
	VariableBase
	layer *value.Layer
	proxy *AttrProxy
}

func (v *LayerVariable) Kind() Kind          { return LAYER_VAR }
func (v *LayerVariable) Layer() *value.Layer { return v.layer }

// GetAttr reads through the proxy, populating it on first access.
func (v *LayerVariable) GetAttr(name string) (Variable, error) {
	return v.proxy.Get(name)
}

// SetAttr writes through the proxy; a rollback undoes the write.
func (v *LayerVariable) SetAttr(name string, val Variable) {
	v.proxy.Set(name, val)
}

// attrLoader resolves an uncached attribute on first read. Bound callables,
// including methods reached through the class rather than the instance, wrap
// as MethodVariables so later calls dispatch through them.
func (v *LayerVariable) attrLoader(owner Variable) AttrLoader {
	return func(name string) (Variable, error) {
		attr, ok := v.layer.Attr(name)
		if !ok {
			return nil, Internalf("layer %s has no attribute %q", v.layer.Inspect(), name)
		}
		if bm, ok := attr.(*value.BoundMethod); ok {
			return WrapMethod(bm, v.Graph(), NewGetAttrTracker(owner, name), owner, nil)
		}
		return v.Graph().FromValue(attr, NewGetAttrTracker(owner, name))
	}
}

// MakeGuards emits exactly two clauses regardless of what was accessed:
// identity of the frame object with the captured layer, and equality of the
// training flag.
func (v *LayerVariable) MakeGuards() ([]guard.Expr, error) {
	frame, err := v.Tracker().FrameSource()
	if err != nil {
		return nil, &InternalError{Message: fmt.Sprintf("guards for %s", v.ID()), Cause: err}
	}
	name := "__" + v.ID()
	return []guard.Expr{
		{
			Source:   fmt.Sprintf("id(%s) == id(%s)", frame.Source, name),
			FreeVars: guard.Union(frame.FreeVars, map[string]value.Value{name: v.layer}),
		},
		{
			Source:   fmt.Sprintf("%s.training == %t", frame.Source, v.layer.Training),
			FreeVars: frame.FreeVars,
		},
	}, nil
}

// NativeLayerVariable is a builtin stateful unit the trace applies as a
// single symbolic operation.
type NativeLayerVariable struct {
	LayerVariable
}

func NewNativeLayer(l *value.Layer, g Graph, t Tracker) *NativeLayerVariable {
	v := &NativeLayerVariable{LayerVariable: LayerVariable{VariableBase: newBase(l, g, t), layer: l}}
	v.proxy = g.Proxy(v, v.attrLoader(v))
	return v
}

func (v *NativeLayerVariable) Inspect() string {
	return fmt.Sprintf("NativeLayerVariable(%s)", v.layer.Inspect())
}

func (v *NativeLayerVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	return v.Graph().CallLayer(ctx, v, args, kwargs)
}

// UserLayerVariable is a user-defined stateful unit: calling it resolves the
// class-level __call__ as a plain user function and re-invokes with the layer
// prepended, mirroring the method-bind pattern.
type UserLayerVariable struct {
	LayerVariable
	inliner InlineCaller
}

func NewUserLayer(l *value.Layer, g Graph, t Tracker, inliner InlineCaller) *UserLayerVariable {
	v := &UserLayerVariable{
		LayerVariable: LayerVariable{VariableBase: newBase(l, g, t), layer: l},
		inliner:       inliner,
	}
	v.proxy = g.Proxy(v, v.attrLoader(v))
	return v
}

func (v *UserLayerVariable) Inspect() string {
	return fmt.Sprintf("UserLayerVariable(%s)", v.layer.Inspect())
}

func (v *UserLayerVariable) Invoke(ctx context.Context, args []Variable, kwargs map[string]Variable) (Variable, error) {
	callFn, ok := v.layer.Class.LookupMethod("__call__")
	if !ok {
		name := "?"
		if v.layer.Class != nil {
			name = v.layer.Class.Name
		}
		return nil, Breakf("layer type %s has no __call__", name)
	}
	fnVar := NewUserFunction(callFn, v.Graph(), NewGetAttrTracker(v, "__call__"), v.inliner)
	return fnVar.Invoke(ctx, append([]Variable{v}, args...), kwargs)
}

func sortedNames(kwargs map[string]Variable) []string {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
