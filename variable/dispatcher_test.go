package variable

import (
	"context"
	"testing"

	"github.com/podhmo/go-trace/value"
)

func namedHandler(name string, hits *[]string) Handler {
	return func(ctx context.Context, g Graph, args []Variable, kwargs map[string]Variable) (Variable, error) {
		*hits = append(*hits, name)
		return nil, nil
	}
}

func TestDispatcherPatterns(t *testing.T) {
	g := newStubGraph(nil)
	constVar := NewConstant(&value.Integer{Value: 1}, g, NewLocalTracker("x"))
	tensorVar := NewTensor(&value.Tensor{Shape: []int64{2}, Data: []float64{0, 0}}, g, NewLocalTracker("t"), nil)

	var hits []string
	d := NewDispatcher()
	regs := []struct {
		name string
		pat  Pattern
		tag  string
	}{
		{"len", Pattern{Arity: 1, Kinds: []Kind{TENSOR_VAR}}, "len-tensor"},
		{"len", Pattern{Arity: 1, Kinds: []Kind{CONST_VAR}}, "len-const"},
		{"add", Pattern{Arity: 2, Kinds: []Kind{CONST_VAR, CONST_VAR}}, "add-const"},
		{"add", Pattern{Arity: 2}, "add-any"},
		{"print", Pattern{Arity: AnyArity}, "print"},
	}
	for _, r := range regs {
		if err := d.Register(r.name, r.pat, namedHandler(r.tag, &hits)); err != nil {
			t.Fatalf("register %s%s: %+v", r.name, r.pat, err)
		}
	}

	dispatch := func(t *testing.T, name string, args ...Variable) string {
		t.Helper()
		h, ok := d.Dispatch(name, args)
		if !ok {
			t.Fatalf("no handler for %s with %d args", name, len(args))
		}
		hits = hits[:0]
		if _, err := h(context.Background(), g, args, nil); err != nil {
			t.Fatalf("handler: %+v", err)
		}
		return hits[0]
	}

	if got := dispatch(t, "len", tensorVar); got != "len-tensor" {
		t.Errorf("len(tensor) hit %s", got)
	}
	if got := dispatch(t, "len", constVar); got != "len-const" {
		t.Errorf("len(const) hit %s", got)
	}
	if got := dispatch(t, "add", constVar, constVar); got != "add-const" {
		t.Errorf("add(const, const) hit %s, want the earlier registration", got)
	}
	if got := dispatch(t, "add", tensorVar, constVar); got != "add-any" {
		t.Errorf("add(tensor, const) hit %s", got)
	}
	if got := dispatch(t, "print"); got != "print" {
		t.Errorf("print() hit %s", got)
	}
	if got := dispatch(t, "print", constVar, tensorVar, constVar); got != "print" {
		t.Errorf("print(...) hit %s", got)
	}

	t.Run("arity mismatch", func(t *testing.T) {
		if _, ok := d.Dispatch("len", []Variable{constVar, constVar}); ok {
			t.Error("len with 2 args must not match")
		}
	})
	t.Run("unknown name", func(t *testing.T) {
		if _, ok := d.Dispatch("nope", []Variable{constVar}); ok {
			t.Error("unknown builtin must not match")
		}
	})
}

func TestDispatcherWildcardPosition(t *testing.T) {
	g := newStubGraph(nil)
	constVar := NewConstant(&value.Integer{Value: 1}, g, NewLocalTracker("x"))
	tensorVar := NewTensor(&value.Tensor{Shape: []int64{2}, Data: []float64{0, 0}}, g, NewLocalTracker("t"), nil)

	var hits []string
	d := NewDispatcher()
	if err := d.Register("mul", Pattern{Arity: 2, Kinds: []Kind{TENSOR_VAR, ""}}, namedHandler("mul", &hits)); err != nil {
		t.Fatalf("register: %+v", err)
	}

	if _, ok := d.Dispatch("mul", []Variable{tensorVar, constVar}); !ok {
		t.Error("wildcard position must match any kind")
	}
	if _, ok := d.Dispatch("mul", []Variable{constVar, constVar}); ok {
		t.Error("constrained position must reject other kinds")
	}
}

func TestDispatcherDuplicatePattern(t *testing.T) {
	var hits []string
	d := NewDispatcher()
	pat := Pattern{Arity: 1, Kinds: []Kind{CONST_VAR}}
	if err := d.Register("len", pat, namedHandler("a", &hits)); err != nil {
		t.Fatalf("register: %+v", err)
	}
	if err := d.Register("len", pat, namedHandler("b", &hits)); err == nil {
		t.Fatal("want error for duplicate pattern, got nil")
	}
	// same shape under another name is fine
	if err := d.Register("bool", pat, namedHandler("c", &hits)); err != nil {
		t.Errorf("unexpected error: %+v", err)
	}
}
