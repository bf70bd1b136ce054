package variable

import (
	"fmt"

	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/value"
)

// FromValueFunc tries to wrap a host value. Returning (nil, nil) defers to
// the next constructor in priority order; returning a variable claims the
// value and stops the scan.
type FromValueFunc func(v value.Value, g Graph, t Tracker) (Variable, error)

type factoryEntry struct {
	name string
	fn   FromValueFunc
}

// Factory is the priority-ordered registry of variable constructors. Exactly
// one constructor must claim any host value handed to FromValue; zero claims
// is an internal-consistency failure, never a silent default.
type Factory struct {
	entries []factoryEntry
	names   map[string]struct{}
}

func NewFactory() *Factory {
	return &Factory{names: map[string]struct{}{}}
}

// Register adds a constructor under a unique name. With an empty successor
// the constructor goes to the end of the priority order. Naming a successor
// inserts the constructor immediately before it, so the successor is reached
// only when this constructor defers.
func (f *Factory) Register(name, successor string, fn FromValueFunc) error {
	if name == "" {
		return fmt.Errorf("register constructor: empty name")
	}
	if _, ok := f.names[name]; ok {
		return fmt.Errorf("register constructor: %q already registered", name)
	}
	entry := factoryEntry{name: name, fn: fn}
	if successor == "" {
		f.entries = append(f.entries, entry)
	} else {
		at := -1
		for i, e := range f.entries {
			if e.name == successor {
				at = i
				break
			}
		}
		if at < 0 {
			return fmt.Errorf("register constructor %q: unknown successor %q", name, successor)
		}
		f.entries = append(f.entries, factoryEntry{})
		copy(f.entries[at+1:], f.entries[at:])
		f.entries[at] = entry
	}
	f.names[name] = struct{}{}
	return nil
}

// FromValue resolves a host value to a variable through the priority order.
func (f *Factory) FromValue(v value.Value, g Graph, t Tracker) (Variable, error) {
	for _, e := range f.entries {
		out, err := e.fn(v, g, t)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}
	if v == nil {
		return nil, Internalf("no constructor matched nil value")
	}
	return nil, Internalf("no constructor matched %s value %s", v.Kind(), v.Inspect())
}

// Names returns the registered constructor names in priority order.
func (f *Factory) Names() []string {
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.name
	}
	return out
}

// Deps are the collaborators the default constructors close over.
type Deps struct {
	Tables     *classify.Tables
	Dispatcher *Dispatcher
	Inliner    InlineCaller
}

// RegisterDefaults installs the standard constructor chain. Priority order
// after installation:
//
//	NativeLayer -> UserLayer -> NativeAPI -> GeneratorFunction -> UserFunction,
//	Builtin, Method, Tensor, Generator, Constant, Object (final fallback).
//
// The layer pair is the only chain with real deferral: hooked or composite
// units fall through to the user-defined path.
func RegisterDefaults(f *Factory, deps Deps) error {
	regs := []struct {
		name      string
		successor string
		fn        FromValueFunc
	}{
		{"UserFunctionVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			fn, ok := v.(*value.Function)
			if !ok {
				return nil, nil
			}
			return NewUserFunction(fn, g, t, deps.Inliner), nil
		}},
		{"NativeAPIVariable", "UserFunctionVariable", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			fn, ok := v.(*value.NativeFunc)
			if !ok {
				return nil, nil
			}
			return NewAPI(fn, g, t, deps.Tables), nil
		}},
		{"GeneratorFunctionVariable", "UserFunctionVariable", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			fn, ok := v.(*value.Function)
			if !ok || !fn.IsGenerator {
				return nil, nil
			}
			return NewGeneratorFunction(fn, g, t), nil
		}},
		{"UserLayerVariable", "NativeAPIVariable", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			l, ok := v.(*value.Layer)
			if !ok {
				return nil, nil
			}
			return NewUserLayer(l, g, t, deps.Inliner), nil
		}},
		{"NativeLayerVariable", "UserLayerVariable", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			l, ok := v.(*value.Layer)
			if !ok {
				return nil, nil
			}
			// hooks and container composition cannot be applied as one
			// symbolic unit; defer to the user-defined path
			if !l.Builtin || l.HasHooks() || l.Composite() {
				return nil, nil
			}
			return NewNativeLayer(l, g, t), nil
		}},
		{"BuiltinVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			b, ok := v.(*value.Builtin)
			if !ok {
				return nil, nil
			}
			return NewBuiltin(b, g, t, deps.Dispatcher, deps.Tables), nil
		}},
		{"MethodVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			bm, ok := v.(*value.BoundMethod)
			if !ok {
				return nil, nil
			}
			return WrapMethod(bm, g, t, nil, nil)
		}},
		{"TensorVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			tv, ok := v.(*value.Tensor)
			if !ok {
				return nil, nil
			}
			return NewTensor(tv, g, t, deps.Tables), nil
		}},
		{"GeneratorVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			gen, ok := v.(*value.Generator)
			if !ok {
				return nil, nil
			}
			return NewGenerator(gen, g, t), nil
		}},
		{"ConstantVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			switch v.(type) {
			case *value.Integer, *value.Float, *value.String, *value.Bool, *value.Nil:
				return NewConstant(v, g, t), nil
			}
			return nil, nil
		}},
		{"ObjectVariable", "", func(v value.Value, g Graph, t Tracker) (Variable, error) {
			if v == nil {
				return nil, nil
			}
			return NewObject(v, g, t, deps.Inliner), nil
		}},
	}
	for _, r := range regs {
		if err := f.Register(r.name, r.successor, r.fn); err != nil {
			return err
		}
	}
	return nil
}
