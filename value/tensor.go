package value

import (
	"fmt"
	"strings"
)

// Tensor is the core data type of the traced domain: a dense n-dimensional
// array. The direct evaluator computes on it; the tracer only records shapes
// of operations over it.
type Tensor struct {
	Shape []int64
	Data  []float64
}

func (t *Tensor) Kind() Kind { return TENSOR_KIND }

func (t *Tensor) Inspect() string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("<tensor shape=[%s]>", strings.Join(dims, " "))
}

// NewTensor builds a tensor, validating that data matches the shape.
func NewTensor(shape []int64, data []float64) (*Tensor, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("tensor: negative dimension %d", d)
		}
		n *= d
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor: shape %v wants %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// Zeros builds a zero-filled tensor.
func Zeros(shape ...int64) *Tensor {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: shape, Data: make([]float64, n)}
}

// Numel is the total element count.
func (t *Tensor) Numel() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ShapeTensor returns the shape itself as a rank-1 tensor, the model's
// stand-in for an integer list. Its length is the rank.
func (t *Tensor) ShapeTensor() *Tensor {
	data := make([]float64, len(t.Shape))
	for i, d := range t.Shape {
		data[i] = float64(d)
	}
	return &Tensor{Shape: []int64{int64(len(t.Shape))}, Data: data}
}

func (t *Tensor) equal(o *Tensor) bool {
	if len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i, d := range t.Shape {
		if o.Shape[i] != d {
			return false
		}
	}
	for i, x := range t.Data {
		if o.Data[i] != x {
			return false
		}
	}
	return true
}

func (t *Tensor) mapElems(f func(float64) float64) *Tensor {
	out := make([]float64, len(t.Data))
	for i, x := range t.Data {
		out[i] = f(x)
	}
	return &Tensor{Shape: append([]int64(nil), t.Shape...), Data: out}
}

// Sum reduces to the scalar sum of all elements.
func (t *Tensor) Sum() float64 {
	var s float64
	for _, x := range t.Data {
		s += x
	}
	return s
}

// Mean reduces to the scalar mean; zero for an empty tensor.
func (t *Tensor) Mean() float64 {
	n := t.Numel()
	if n == 0 {
		return 0
	}
	return t.Sum() / float64(n)
}

// Reshape returns a view-copy with a new shape of the same element count.
func (t *Tensor) Reshape(shape []int64) (*Tensor, error) {
	return NewTensor(shape, append([]float64(nil), t.Data...))
}

// Item extracts the sole element of a one-element tensor.
func (t *Tensor) Item() (float64, error) {
	if t.Numel() != 1 {
		return 0, fmt.Errorf("tensor: item() on %d elements", t.Numel())
	}
	return t.Data[0], nil
}

// CallMethod runs a tensor intrinsic method directly. The tracer mirrors this
// set symbolically; keep the two in sync with the classification tables.
func (t *Tensor) CallMethod(name string, args []Value) (Value, error) {
	switch name {
	case "sum":
		return &Float{Value: t.Sum()}, nil
	case "mean":
		return &Float{Value: t.Mean()}, nil
	case "numel":
		return &Integer{Value: t.Numel()}, nil
	case "item":
		x, err := t.Item()
		if err != nil {
			return nil, err
		}
		return &Float{Value: x}, nil
	case "reshape":
		shape := make([]int64, len(args))
		for i, a := range args {
			n, ok := a.(*Integer)
			if !ok {
				return nil, fmt.Errorf("reshape: dimension %d is %s, want INTEGER", i, a.Kind())
			}
			shape[i] = n.Value
		}
		return t.Reshape(shape)
	default:
		return nil, fmt.Errorf("tensor: unknown method %q", name)
	}
}

// IsTensorMethod reports whether name is a tensor intrinsic method.
func IsTensorMethod(name string) bool {
	switch name {
	case "sum", "mean", "numel", "item", "reshape":
		return true
	}
	return false
}

func asFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case *Integer:
		return float64(v.Value), true
	case *Float:
		return v.Value, true
	}
	return 0, false
}

// BinaryOp computes a binary operator directly. It covers scalar arithmetic,
// string concatenation, elementwise tensor arithmetic with scalar broadcast,
// and 2-D matmul. Unsupported combinations are guest-level errors.
func BinaryOp(op string, a, b Value) (Value, error) {
	if op == "matmul" {
		return matmul(a, b)
	}
	switch av := a.(type) {
	case *Integer:
		if bv, ok := b.(*Integer); ok {
			return intOp(op, av.Value, bv.Value)
		}
	case *String:
		if bv, ok := b.(*String); ok && op == "add" {
			return &String{Value: av.Value + bv.Value}, nil
		}
	case *Tensor:
		if bv, ok := b.(*Tensor); ok {
			return tensorOp(op, av, bv)
		}
		if x, ok := asFloat(b); ok {
			return scalarOp(op, av, x, false)
		}
	}
	if t, ok := b.(*Tensor); ok {
		if x, ok := asFloat(a); ok {
			return scalarOp(op, t, x, true)
		}
	}
	if x, ok := asFloat(a); ok {
		if y, ok := asFloat(b); ok {
			return floatOp(op, x, y)
		}
	}
	return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, a.Kind(), b.Kind())
}

func intOp(op string, x, y int64) (Value, error) {
	switch op {
	case "add":
		return &Integer{Value: x + y}, nil
	case "sub":
		return &Integer{Value: x - y}, nil
	case "mul":
		return &Integer{Value: x * y}, nil
	}
	return nil, fmt.Errorf("unsupported integer operator %q", op)
}

func floatOp(op string, x, y float64) (Value, error) {
	switch op {
	case "add":
		return &Float{Value: x + y}, nil
	case "sub":
		return &Float{Value: x - y}, nil
	case "mul":
		return &Float{Value: x * y}, nil
	}
	return nil, fmt.Errorf("unsupported float operator %q", op)
}

func tensorOp(op string, a, b *Tensor) (Value, error) {
	if len(a.Data) != len(b.Data) {
		return nil, fmt.Errorf("%s: shape mismatch %v vs %v", op, a.Shape, b.Shape)
	}
	f, err := elemFunc(op)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a.Data))
	for i := range a.Data {
		out[i] = f(a.Data[i], b.Data[i])
	}
	return &Tensor{Shape: append([]int64(nil), a.Shape...), Data: out}, nil
}

func scalarOp(op string, t *Tensor, x float64, scalarFirst bool) (Value, error) {
	f, err := elemFunc(op)
	if err != nil {
		return nil, err
	}
	return t.mapElems(func(e float64) float64 {
		if scalarFirst {
			return f(x, e)
		}
		return f(e, x)
	}), nil
}

func elemFunc(op string) (func(a, b float64) float64, error) {
	switch op {
	case "add":
		return func(a, b float64) float64 { return a + b }, nil
	case "sub":
		return func(a, b float64) float64 { return a - b }, nil
	case "mul":
		return func(a, b float64) float64 { return a * b }, nil
	}
	return nil, fmt.Errorf("unsupported tensor operator %q", op)
}

func matmul(a, b Value) (Value, error) {
	x, ok := a.(*Tensor)
	if !ok {
		return nil, fmt.Errorf("matmul: want tensor, got %s", a.Kind())
	}
	y, ok := b.(*Tensor)
	if !ok {
		return nil, fmt.Errorf("matmul: want tensor, got %s", b.Kind())
	}
	if len(x.Shape) != 2 || len(y.Shape) != 2 || x.Shape[1] != y.Shape[0] {
		return nil, fmt.Errorf("matmul: incompatible shapes %v and %v", x.Shape, y.Shape)
	}
	m, k, n := x.Shape[0], x.Shape[1], y.Shape[1]
	out := make([]float64, m*n)
	for i := int64(0); i < m; i++ {
		for j := int64(0); j < n; j++ {
			var s float64
			for p := int64(0); p < k; p++ {
				s += x.Data[i*k+p] * y.Data[p*n+j]
			}
			out[i*n+j] = s
		}
	}
	return &Tensor{Shape: []int64{m, n}, Data: out}, nil
}
