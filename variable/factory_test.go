package variable

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/value"
)

func defaultFactory(t *testing.T) (*Factory, *stubGraph) {
	t.Helper()
	tables, err := classify.Default()
	if err != nil {
		t.Fatalf("load tables: %+v", err)
	}
	f := NewFactory()
	if err := RegisterDefaults(f, Deps{Tables: tables, Dispatcher: NewDispatcher(), Inliner: &stubInliner{}}); err != nil {
		t.Fatalf("register defaults: %+v", err)
	}
	return f, newStubGraph(f)
}

func TestFactoryRegister(t *testing.T) {
	claim := func(v value.Value, g Graph, tr Tracker) (Variable, error) {
		return NewConstant(v, g, tr), nil
	}

	t.Run("empty name", func(t *testing.T) {
		f := NewFactory()
		if err := f.Register("", "", claim); err == nil {
			t.Fatal("want error for empty name, got nil")
		}
	})
	t.Run("duplicate name", func(t *testing.T) {
		f := NewFactory()
		if err := f.Register("A", "", claim); err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if err := f.Register("A", "", claim); err == nil {
			t.Fatal("want error for duplicate name, got nil")
		}
	})
	t.Run("unknown successor", func(t *testing.T) {
		f := NewFactory()
		if err := f.Register("A", "Nope", claim); err == nil {
			t.Fatal("want error for unknown successor, got nil")
		}
	})
	t.Run("successor inserts before", func(t *testing.T) {
		f := NewFactory()
		for _, name := range []string{"A", "B", "C"} {
			if err := f.Register(name, "", claim); err != nil {
				t.Fatalf("register %s: %+v", name, err)
			}
		}
		if err := f.Register("X", "B", claim); err != nil {
			t.Fatalf("register X: %+v", err)
		}
		want := []string{"A", "X", "B", "C"}
		if diff := cmp.Diff(want, f.Names()); diff != "" {
			t.Errorf("priority order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFactoryDefaultOrder(t *testing.T) {
	f, _ := defaultFactory(t)
	want := []string{
		"NativeLayerVariable",
		"UserLayerVariable",
		"NativeAPIVariable",
		"GeneratorFunctionVariable",
		"UserFunctionVariable",
		"BuiltinVariable",
		"MethodVariable",
		"TensorVariable",
		"GeneratorVariable",
		"ConstantVariable",
		"ObjectVariable",
	}
	if diff := cmp.Diff(want, f.Names()); diff != "" {
		t.Errorf("default priority order mismatch (-want +got):\n%s", diff)
	}
}

func TestFactoryResolution(t *testing.T) {
	_, g := defaultFactory(t)

	fn := &value.Function{Name: "f"}
	builtinLayer := &value.Layer{Class: &value.Type{Name: "ReLU"}, Builtin: true, Unit: value.ReluAPI}
	hookedLayer := &value.Layer{
		Class:    &value.Type{Name: "ReLU"},
		Builtin:  true,
		Unit:     value.ReluAPI,
		PreHooks: []*value.Function{{Name: "hook"}},
	}
	userLayer := &value.Layer{Class: &value.Type{Name: "MyNet"}}

	cases := []struct {
		name string
		in   value.Value
		want Kind
	}{
		{name: "function", in: fn, want: USER_FUNCTION_VAR},
		{name: "generator function", in: &value.Function{Name: "gen", IsGenerator: true}, want: GENERATOR_FUNCTION_VAR},
		{name: "native api", in: value.AddAPI, want: NATIVE_API_VAR},
		{name: "builtin layer", in: builtinLayer, want: LAYER_VAR},
		{name: "builtin", in: &value.Builtin{Name: "len"}, want: BUILTIN_VAR},
		{name: "bound method", in: &value.BoundMethod{Receiver: &value.Instance{Class: &value.Type{Name: "C"}}, Fn: fn}, want: METHOD_VAR},
		{name: "tensor", in: &value.Tensor{Shape: []int64{1}, Data: []float64{0}}, want: TENSOR_VAR},
		{name: "generator", in: &value.Generator{Fn: fn}, want: GENERATOR_VAR},
		{name: "integer", in: &value.Integer{Value: 1}, want: CONST_VAR},
		{name: "string", in: &value.String{Value: "s"}, want: CONST_VAR},
		{name: "instance", in: &value.Instance{Class: &value.Type{Name: "C"}}, want: OBJECT_VAR},
		{name: "type object", in: &value.Type{Name: "C"}, want: OBJECT_VAR},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := g.FromValue(c.in, NewLocalTracker("x"))
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if got.Kind() != c.want {
				t.Errorf("kind = %s, want %s", got.Kind(), c.want)
			}
		})
	}

	t.Run("plain builtin layer is native", func(t *testing.T) {
		got, err := g.FromValue(builtinLayer, NewLocalTracker("m"))
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if _, ok := got.(*NativeLayerVariable); !ok {
			t.Errorf("got %T, want *NativeLayerVariable", got)
		}
	})
	t.Run("hooked layer defers to user path", func(t *testing.T) {
		got, err := g.FromValue(hookedLayer, NewLocalTracker("m"))
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if _, ok := got.(*UserLayerVariable); !ok {
			t.Errorf("got %T, want *UserLayerVariable", got)
		}
	})
	t.Run("non-builtin layer is user-defined", func(t *testing.T) {
		got, err := g.FromValue(userLayer, NewLocalTracker("m"))
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if _, ok := got.(*UserLayerVariable); !ok {
			t.Errorf("got %T, want *UserLayerVariable", got)
		}
	})
}

func TestFactoryZeroClaims(t *testing.T) {
	f := NewFactory()
	g := newStubGraph(nil)
	_, err := f.FromValue(&value.Integer{Value: 1}, g, NewLocalTracker("x"))
	if err == nil {
		t.Fatal("want internal error for unmatched value, got nil")
	}
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("want *InternalError, got %T: %v", err, err)
	}
	if Recoverable(err) {
		t.Error("a factory miss must not be recoverable")
	}
}

func TestFactoryDeferral(t *testing.T) {
	f := NewFactory()
	g := newStubGraph(nil)
	var order []string
	deferring := func(name string) FromValueFunc {
		return func(v value.Value, g Graph, tr Tracker) (Variable, error) {
			order = append(order, name)
			return nil, nil
		}
	}
	if err := f.Register("B", "", deferring("B")); err != nil {
		t.Fatalf("register B: %+v", err)
	}
	if err := f.Register("A", "B", deferring("A")); err != nil {
		t.Fatalf("register A: %+v", err)
	}
	if err := f.Register("C", "", func(v value.Value, g Graph, tr Tracker) (Variable, error) {
		order = append(order, "C")
		return NewConstant(v, g, tr), nil
	}); err != nil {
		t.Fatalf("register C: %+v", err)
	}

	got, err := f.FromValue(&value.Integer{Value: 1}, g, NewConstTracker(&value.Integer{Value: 1}))
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if got == nil {
		t.Fatal("want a variable from the claiming constructor")
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, order); diff != "" {
		t.Errorf("scan order mismatch (-want +got):\n%s", diff)
	}
}

func TestFactoryConstructorError(t *testing.T) {
	f := NewFactory()
	g := newStubGraph(nil)
	if err := f.Register("Boom", "", func(v value.Value, g Graph, tr Tracker) (Variable, error) {
		return nil, Internalf("boom")
	}); err != nil {
		t.Fatalf("register: %+v", err)
	}
	_, err := f.FromValue(&value.Integer{Value: 1}, g, NewLocalTracker("x"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("want constructor error to propagate, got %v", err)
	}
}
