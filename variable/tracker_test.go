package variable

import (
	"errors"
	"strings"
	"testing"

	"github.com/podhmo/go-trace/value"
)

func TestFrameSources(t *testing.T) {
	cases := []struct {
		name    string
		tracker Tracker
		want    string
	}{
		{name: "local", tracker: NewLocalTracker("x"), want: `locals["x"]`},
		{name: "global", tracker: NewGlobalTracker("net"), want: `globals["net"]`},
		{name: "builtin", tracker: NewBuiltinTracker("add"), want: `builtins["add"]`},
		{name: "const int", tracker: NewConstTracker(&value.Integer{Value: 42}), want: "42"},
		{name: "const string", tracker: NewConstTracker(&value.String{Value: "hi"}), want: `"hi"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			expr, err := c.tracker.FrameSource()
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if expr.Source != c.want {
				t.Errorf("source = %q, want %q", expr.Source, c.want)
			}
			if !c.tracker.Traceable() {
				t.Error("frame origins must be traceable")
			}
		})
	}
}

func TestGetAttrTrackerChain(t *testing.T) {
	g := newStubGraph(nil)
	m := NewConstant(value.NIL, g, NewLocalTracker("m"))
	w := NewConstant(value.NIL, g, NewGetAttrTracker(m, "linear"))
	leaf := NewGetAttrTracker(w, "weight")

	expr, err := leaf.FrameSource()
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if want := `locals["m"].linear.weight`; expr.Source != want {
		t.Errorf("source = %q, want %q", expr.Source, want)
	}
	if !leaf.Traceable() {
		t.Error("a chain rooted in a frame origin must be traceable")
	}
}

func TestDanglingTracker(t *testing.T) {
	d := NewDanglingTracker()
	if d.Traceable() {
		t.Error("dangling provenance must not be traceable")
	}
	_, err := d.FrameSource()
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("want *InternalError from a dangling frame source, got %T: %v", err, err)
	}
}

func TestSynthesizedTracker(t *testing.T) {
	g := newStubGraph(nil)
	a := NewConstant(value.NIL, g, NewLocalTracker("a"))
	s := NewSynthesizedTracker(a)
	if s.Traceable() {
		t.Error("synthesized provenance must not be traceable")
	}
	if _, err := s.FrameSource(); err == nil {
		t.Error("want error from a synthesized frame source, got nil")
	}
	if got := s.Inputs(); len(got) != 1 || got[0] != Variable(a) {
		t.Errorf("inputs = %v, want the source variable", got)
	}
}

func TestGetAttrOverDanglingIsUntraceable(t *testing.T) {
	g := newStubGraph(nil)
	base := NewConstant(value.NIL, g, NewDanglingTracker())
	tr := NewGetAttrTracker(base, "field")
	if tr.Traceable() {
		t.Error("attribute access over dangling provenance must not be traceable")
	}
	if _, err := tr.FrameSource(); err == nil {
		t.Error("want error, got nil")
	}
}

func TestValidateTracker(t *testing.T) {
	g := newStubGraph(nil)

	t.Run("frame origin leaf", func(t *testing.T) {
		if err := ValidateTracker(NewLocalTracker("x")); err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
	})
	t.Run("attribute chain", func(t *testing.T) {
		m := NewConstant(value.NIL, g, NewLocalTracker("m"))
		if err := ValidateTracker(NewGetAttrTracker(m, "weight")); err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
	})
	t.Run("empty synthesized leaf", func(t *testing.T) {
		if err := ValidateTracker(NewSynthesizedTracker()); err == nil {
			t.Error("want error for a sourceless synthesized tracker, got nil")
		}
	})
	t.Run("cycle", func(t *testing.T) {
		a := NewConstant(value.NIL, g, NewDanglingTracker())
		b := NewConstant(value.NIL, g, NewGetAttrTracker(a, "b"))
		a.setTracker(NewGetAttrTracker(b, "a"))
		err := ValidateTracker(a.Tracker())
		if err == nil || !strings.Contains(err.Error(), "cycle") {
			t.Errorf("want cycle error, got %v", err)
		}
	})
}

func TestDefaultMakeGuards(t *testing.T) {
	g := newStubGraph(nil)

	t.Run("equality on the frame source", func(t *testing.T) {
		v := NewConstant(&value.Integer{Value: 3}, g, NewLocalTracker("x"))
		guards, err := v.MakeGuards()
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(guards) != 1 {
			t.Fatalf("got %d guards, want 1", len(guards))
		}
		want := `locals["x"] == __` + v.ID()
		if guards[0].Source != want {
			t.Errorf("guard = %q, want %q", guards[0].Source, want)
		}
		if _, ok := guards[0].FreeVars["__"+v.ID()]; !ok {
			t.Errorf("guard must capture the compared value under __%s", v.ID())
		}
	})
	t.Run("untraceable origin is an internal error", func(t *testing.T) {
		v := NewConstant(&value.Integer{Value: 3}, g, NewDanglingTracker())
		_, err := v.MakeGuards()
		var internal *InternalError
		if !errors.As(err, &internal) {
			t.Fatalf("want *InternalError, got %T: %v", err, err)
		}
	})
}
