package variable

import (
	"fmt"

	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/guard"
	"github.com/podhmo/go-trace/value"
)

// ConstantVariable wraps a scalar literal.
type ConstantVariable struct {
	VariableBase
}

func NewConstant(v value.Value, g Graph, t Tracker) *ConstantVariable {
	return &ConstantVariable{VariableBase: newBase(v, g, t)}
}

func (v *ConstantVariable) Kind() Kind { return CONST_VAR }
func (v *ConstantVariable) Inspect() string {
	return fmt.Sprintf("ConstantVariable(%s)", value.Repr(v.Value()))
}

// TensorVariable wraps the domain's core data type. During tracing the tensor
// holds placeholder data; only its shape participates in guards.
type TensorVariable struct {
	VariableBase
	tensor *value.Tensor
	tables *classify.Tables
}

func NewTensor(t *value.Tensor, g Graph, tr Tracker, tables *classify.Tables) *TensorVariable {
	return &TensorVariable{VariableBase: newBase(t, g, tr), tensor: t, tables: tables}
}

func (v *TensorVariable) Kind() Kind { return TENSOR_VAR }
func (v *TensorVariable) Inspect() string {
	return fmt.Sprintf("TensorVariable(%s, %s)", v.ID(), v.tensor.Inspect())
}

// Tensor returns the wrapped tensor.
func (v *TensorVariable) Tensor() *value.Tensor { return v.tensor }

// GetAttr exposes the tensor's intrinsic methods. Anything else is not
// traceable on a placeholder tensor.
func (v *TensorVariable) GetAttr(name string) (Variable, error) {
	if name == "shape" {
		// The shape is fixed for the whole trace (guarded below), so the
		// attribute is an ordinary constant.
		return NewConstant(v.tensor.ShapeTensor(), v.Graph(), NewGetAttrTracker(v, name)), nil
	}
	if value.IsTensorMethod(name) || v.tables.IsUnsupportedTensorMethod(name) {
		return newTensorMethod(name, v, v.Graph(), NewGetAttrTracker(v, name), v.tables), nil
	}
	return nil, Breakf("tensor attribute %q is not traceable", name)
}

// MakeGuards pins the tensor's shape rather than its contents: replaying a
// trace needs the same geometry, not the same numbers.
func (v *TensorVariable) MakeGuards() ([]guard.Expr, error) {
	frame, err := v.Tracker().FrameSource()
	if err != nil {
		return nil, &InternalError{Message: fmt.Sprintf("guards for %s", v.ID()), Cause: err}
	}
	return []guard.Expr{{
		Source:   fmt.Sprintf("shape(%s) == %v", frame.Source, v.tensor.Shape),
		FreeVars: frame.FreeVars,
	}}, nil
}

// ObjectVariable is the final factory fallback: any host value without a more
// specific kind. Attribute access binds guest methods; everything else about
// the object stays opaque.
type ObjectVariable struct {
	VariableBase
	inliner InlineCaller
}

func NewObject(v value.Value, g Graph, t Tracker, inliner InlineCaller) *ObjectVariable {
	return &ObjectVariable{VariableBase: newBase(v, g, t), inliner: inliner}
}

func (v *ObjectVariable) Kind() Kind { return OBJECT_VAR }
func (v *ObjectVariable) Inspect() string {
	return fmt.Sprintf("ObjectVariable(%s)", v.Value().Inspect())
}

func (v *ObjectVariable) GetAttr(name string) (Variable, error) {
	switch val := v.Value().(type) {
	case *value.Instance:
		attr, ok := val.Attr(name)
		if !ok {
			return nil, Breakf("%s has no attribute %q", val.Inspect(), name)
		}
		if bm, ok := attr.(*value.BoundMethod); ok {
			fnVar := NewUserFunction(bm.Fn, v.Graph(), NewDanglingTracker(), v.inliner)
			return fnVar.Bind(v, name)
		}
		return v.Graph().FromValue(attr, NewGetAttrTracker(v, name))
	case *value.Type:
		if fn, ok := val.LookupMethod(name); ok {
			return v.Graph().FromValue(fn, NewGetAttrTracker(v, name))
		}
		return nil, Breakf("type %s has no attribute %q", val.Name, name)
	default:
		return nil, Breakf("attribute access on %s is not traceable", v.Value().Kind())
	}
}

// GeneratorVariable wraps a live generator object. Construction is all this
// core models; iteration belongs to the interpreter loop.
type GeneratorVariable struct {
	VariableBase
}

func NewGenerator(gen *value.Generator, g Graph, t Tracker) *GeneratorVariable {
	return &GeneratorVariable{VariableBase: newBase(gen, g, t)}
}

func (v *GeneratorVariable) Kind() Kind { return GENERATOR_VAR }
func (v *GeneratorVariable) Inspect() string {
	return fmt.Sprintf("GeneratorVariable(%s)", v.Value().Inspect())
}
