// Package value defines the host-side model of the values a guest program
// manipulates: scalars, functions, builtins, tensors, stateful layers and the
// micro-instruction code format. The tracer wraps these in traced variables;
// the direct evaluator executes them as-is.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a string tag identifying a value's shape.
type Kind string

const (
	INTEGER_KIND      Kind = "INTEGER"
	FLOAT_KIND        Kind = "FLOAT"
	STRING_KIND       Kind = "STRING"
	BOOL_KIND         Kind = "BOOL"
	NIL_KIND          Kind = "NIL"
	FUNCTION_KIND     Kind = "FUNCTION"
	BUILTIN_KIND      Kind = "BUILTIN"
	NATIVE_FUNC_KIND  Kind = "NATIVE_FUNC"
	GENERATOR_KIND    Kind = "GENERATOR"
	TENSOR_KIND       Kind = "TENSOR"
	LAYER_KIND        Kind = "LAYER"
	TYPE_KIND         Kind = "TYPE"
	INSTANCE_KIND     Kind = "INSTANCE"
	BOUND_METHOD_KIND Kind = "BOUND_METHOD"
)

// Value is the interface all guest values implement.
type Value interface {
	Kind() Kind
	Inspect() string
}

// --- Scalars ---

// Integer is a guest integer.
type Integer struct {
	Value int64
}

func (i *Integer) Kind() Kind      { return INTEGER_KIND }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// Float is a guest floating-point number.
type Float struct {
	Value float64
}

func (f *Float) Kind() Kind      { return FLOAT_KIND }
func (f *Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// String is a guest string.
type String struct {
	Value string
}

func (s *String) Kind() Kind      { return STRING_KIND }
func (s *String) Inspect() string { return s.Value }

// Bool is a guest boolean.
type Bool struct {
	Value bool
}

func (b *Bool) Kind() Kind      { return BOOL_KIND }
func (b *Bool) Inspect() string { return strconv.FormatBool(b.Value) }

// Nil is the guest null value.
type Nil struct{}

func (n *Nil) Kind() Kind      { return NIL_KIND }
func (n *Nil) Inspect() string { return "nil" }

// NIL is the shared nil instance.
var NIL = &Nil{}

// TRUE and FALSE are the shared boolean instances.
var (
	TRUE  = &Bool{Value: true}
	FALSE = &Bool{Value: false}
)

// FromBool returns the shared Bool for b.
func FromBool(b bool) *Bool {
	if b {
		return TRUE
	}
	return FALSE
}

// Repr renders v as a guard-grade literal: a form the replay-time checker can
// compare textually. Non-literal values fall back to Inspect.
func Repr(v Value) string {
	switch v := v.(type) {
	case *String:
		return strconv.Quote(v.Value)
	case *Integer, *Float, *Bool, *Nil:
		return v.Inspect()
	default:
		return v.Inspect()
	}
}

// Truthy reports the guest-language truth of v.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case *Nil:
		return false
	case *Bool:
		return v.Value
	case *Integer:
		return v.Value != 0
	case *Float:
		return v.Value != 0
	case *String:
		return len(v.Value) > 0
	case *Tensor:
		return v.Numel() > 0
	default:
		return true
	}
}

// Equal reports guest-level equality. Scalars and tensors compare by value;
// everything else compares by identity, matching the guest's default.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case *Integer:
		bv, ok := b.(*Integer)
		return ok && av.Value == bv.Value
	case *Float:
		bv, ok := b.(*Float)
		return ok && av.Value == bv.Value
	case *String:
		bv, ok := b.(*String)
		return ok && av.Value == bv.Value
	case *Bool:
		bv, ok := b.(*Bool)
		return ok && av.Value == bv.Value
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *Tensor:
		bv, ok := b.(*Tensor)
		return ok && av.equal(bv)
	default:
		return a == b
	}
}

// --- Types and instances ---

// Type is a first-class guest type descriptor. Methods hold the type's
// special and ordinary methods; instances never store methods themselves.
type Type struct {
	Name    string
	Methods map[string]*Function
}

func (t *Type) Kind() Kind      { return TYPE_KIND }
func (t *Type) Inspect() string { return fmt.Sprintf("<type %s>", t.Name) }

// LookupMethod resolves a method by name through the type. This is the single
// place descriptor-style indirection is handled: attribute access on an
// instance that misses its own namespace lands here.
func (t *Type) LookupMethod(name string) (*Function, bool) {
	if t == nil || t.Methods == nil {
		return nil, false
	}
	fn, ok := t.Methods[name]
	return fn, ok
}

// Shared types for the built-in kinds. They carry no methods; operations on
// them go through the dispatcher, not the magic-method protocol.
var (
	IntType         = &Type{Name: "int"}
	FloatType       = &Type{Name: "float"}
	StringType      = &Type{Name: "str"}
	BoolType        = &Type{Name: "bool"}
	NilType         = &Type{Name: "nil"}
	FunctionType    = &Type{Name: "function"}
	BuiltinType     = &Type{Name: "builtin"}
	NativeFuncType  = &Type{Name: "native_func"}
	GeneratorType   = &Type{Name: "generator"}
	TensorType      = &Type{Name: "tensor"}
	BoundMethodType = &Type{Name: "bound_method"}
	TypeType        = &Type{Name: "type"}
)

// TypeOf returns the guest class of v. Instances and layers carry their own
// class; every other kind maps to a shared singleton.
func TypeOf(v Value) *Type {
	switch v := v.(type) {
	case *Instance:
		return v.Class
	case *Layer:
		return v.Class
	case *Integer:
		return IntType
	case *Float:
		return FloatType
	case *String:
		return StringType
	case *Bool:
		return BoolType
	case *Nil:
		return NilType
	case *Function:
		return FunctionType
	case *Builtin:
		return BuiltinType
	case *NativeFunc:
		return NativeFuncType
	case *Generator:
		return GeneratorType
	case *Tensor:
		return TensorType
	case *BoundMethod:
		return BoundMethodType
	case *Type:
		return TypeType
	default:
		return nil
	}
}

// Instance is a plain guest object: named fields over a class.
type Instance struct {
	Class  *Type
	Fields map[string]Value
}

func (i *Instance) Kind() Kind { return INSTANCE_KIND }
func (i *Instance) Inspect() string {
	name := "object"
	if i.Class != nil {
		name = i.Class.Name
	}
	return fmt.Sprintf("<%s instance>", name)
}

// Attr reads an attribute: own fields first, then class methods bound to the
// instance. The second result is false when neither exists.
func (i *Instance) Attr(name string) (Value, bool) {
	if v, ok := i.Fields[name]; ok {
		return v, true
	}
	if fn, ok := i.Class.LookupMethod(name); ok {
		return &BoundMethod{Receiver: i, Fn: fn}, true
	}
	return nil, false
}

// SetAttr writes an instance field.
func (i *Instance) SetAttr(name string, v Value) {
	if i.Fields == nil {
		i.Fields = map[string]Value{}
	}
	i.Fields[name] = v
}

// BoundMethod pairs a receiver with the function resolved from its class.
type BoundMethod struct {
	Receiver Value
	Fn       *Function
}

func (m *BoundMethod) Kind() Kind { return BOUND_METHOD_KIND }
func (m *BoundMethod) Inspect() string {
	return fmt.Sprintf("<bound method %s of %s>", m.Fn.Name, m.Receiver.Inspect())
}

func inspectList(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Inspect()
	}
	return strings.Join(parts, ", ")
}
