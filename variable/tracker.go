package variable

import (
	"fmt"

	"github.com/podhmo/go-trace/guard"
	"github.com/podhmo/go-trace/value"
)

// Tracker records a variable's provenance: how its value can be reached again
// from a live execution frame. Trackers carry no behavior beyond rebuilding
// that frame expression; they exist so guard production and trace replay can
// name the value's origin.
type Tracker interface {
	// Traceable reports whether the provenance chain reaches the frame.
	Traceable() bool
	// FrameSource rebuilds the frame-relative expression for the value.
	// Untraceable trackers return an internal error.
	FrameSource() (guard.Expr, error)
	// Inputs lists the variables this provenance depends on.
	Inputs() []Variable
	String() string
}

// LocalTracker marks a value read from the frame's local slots.
type LocalTracker struct {
	Name string
}

func NewLocalTracker(name string) *LocalTracker { return &LocalTracker{Name: name} }

func (t *LocalTracker) Traceable() bool { return true }
func (t *LocalTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{Source: fmt.Sprintf("locals[%q]", t.Name)}, nil
}
func (t *LocalTracker) Inputs() []Variable { return nil }
func (t *LocalTracker) String() string     { return fmt.Sprintf("LocalTracker(%s)", t.Name) }

// GlobalTracker marks a value read from the frame's global namespace.
type GlobalTracker struct {
	Name string
}

func NewGlobalTracker(name string) *GlobalTracker { return &GlobalTracker{Name: name} }

func (t *GlobalTracker) Traceable() bool { return true }
func (t *GlobalTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{Source: fmt.Sprintf("globals[%q]", t.Name)}, nil
}
func (t *GlobalTracker) Inputs() []Variable { return nil }
func (t *GlobalTracker) String() string     { return fmt.Sprintf("GlobalTracker(%s)", t.Name) }

// BuiltinTracker marks a language builtin reached by name rather than through
// the frame's namespaces.
type BuiltinTracker struct {
	Name string
}

func NewBuiltinTracker(name string) *BuiltinTracker { return &BuiltinTracker{Name: name} }

func (t *BuiltinTracker) Traceable() bool { return true }
func (t *BuiltinTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{Source: fmt.Sprintf("builtins[%q]", t.Name)}, nil
}
func (t *BuiltinTracker) Inputs() []Variable { return nil }
func (t *BuiltinTracker) String() string     { return fmt.Sprintf("BuiltinTracker(%s)", t.Name) }

// ConstTracker marks a literal: the frame expression is the literal itself.
type ConstTracker struct {
	Value value.Value
}

func NewConstTracker(v value.Value) *ConstTracker { return &ConstTracker{Value: v} }

func (t *ConstTracker) Traceable() bool { return true }
func (t *ConstTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{Source: value.Repr(t.Value)}, nil
}
func (t *ConstTracker) Inputs() []Variable { return nil }
func (t *ConstTracker) String() string     { return fmt.Sprintf("ConstTracker(%s)", value.Repr(t.Value)) }

// GetAttrTracker marks a value obtained by attribute access on another
// traced variable.
type GetAttrTracker struct {
	Base Variable
	Name string
}

func NewGetAttrTracker(base Variable, name string) *GetAttrTracker {
	return &GetAttrTracker{Base: base, Name: name}
}

func (t *GetAttrTracker) Traceable() bool {
	return t.Base.Tracker().Traceable()
}

func (t *GetAttrTracker) FrameSource() (guard.Expr, error) {
	base, err := t.Base.Tracker().FrameSource()
	if err != nil {
		return guard.Expr{}, err
	}
	return base.Attr(t.Name), nil
}

func (t *GetAttrTracker) Inputs() []Variable { return []Variable{t.Base} }
func (t *GetAttrTracker) String() string {
	return fmt.Sprintf("GetAttrTracker(%s.%s)", t.Base.ID(), t.Name)
}

// DanglingTracker marks a value with no reconstructable origin. It is legal
// only transiently, between creating a variable and handing ownership to the
// composite that re-roots it; it must never feed a guard.
type DanglingTracker struct{}

func NewDanglingTracker() *DanglingTracker { return &DanglingTracker{} }

func (t *DanglingTracker) Traceable() bool { return false }
func (t *DanglingTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{}, Internalf("dangling tracker has no frame source")
}
func (t *DanglingTracker) Inputs() []Variable { return nil }
func (t *DanglingTracker) String() string     { return "DanglingTracker" }

// SynthesizedTracker marks a value produced purely from other traced
// variables, such as the result of an inline call or a folded constant. It is
// not frame-traceable itself; its inputs are.
type SynthesizedTracker struct {
	From []Variable
}

func NewSynthesizedTracker(from ...Variable) *SynthesizedTracker {
	return &SynthesizedTracker{From: from}
}

func (t *SynthesizedTracker) Traceable() bool { return false }
func (t *SynthesizedTracker) FrameSource() (guard.Expr, error) {
	return guard.Expr{}, Internalf("synthesized value has no frame source")
}
func (t *SynthesizedTracker) Inputs() []Variable { return t.From }
func (t *SynthesizedTracker) String() string {
	return fmt.Sprintf("SynthesizedTracker(%d inputs)", len(t.From))
}

// ValidateTracker walks a provenance chain and reports cycles or leaves that
// are neither frame origins nor explicitly dangling. Useful in tests and when
// wiring new variable kinds.
func ValidateTracker(t Tracker) error {
	return validateTracker(t, map[Variable]bool{})
}

func validateTracker(t Tracker, onPath map[Variable]bool) error {
	inputs := t.Inputs()
	if len(inputs) == 0 {
		switch t.(type) {
		case *LocalTracker, *GlobalTracker, *BuiltinTracker, *ConstTracker, *DanglingTracker:
			return nil
		default:
			return Internalf("tracker %s is a leaf but not a frame origin", t)
		}
	}
	for _, in := range inputs {
		if onPath[in] {
			return Internalf("tracker cycle through %s", in.ID())
		}
		onPath[in] = true
		if err := validateTracker(in.Tracker(), onPath); err != nil {
			return err
		}
		delete(onPath, in)
	}
	return nil
}
