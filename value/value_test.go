package value

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRepr(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"integer", &Integer{Value: 42}, "42"},
		{"negative", &Integer{Value: -3}, "-3"},
		{"float", &Float{Value: 1.5}, "1.5"},
		{"string quoted", &String{Value: `a"b`}, `"a\"b"`},
		{"bool", TRUE, "true"},
		{"nil", NIL, "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Repr(tt.v); got != tt.want {
				t.Errorf("Repr(%s): got %q, want %q", tt.v.Inspect(), got, tt.want)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{NIL, false},
		{FALSE, false},
		{TRUE, true},
		{&Integer{Value: 0}, false},
		{&Integer{Value: 7}, true},
		{&String{Value: ""}, false},
		{&String{Value: "x"}, true},
		{Zeros(2, 2), true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%s): got %t, want %t", tt.v.Inspect(), got, tt.want)
		}
	}
}

func TestTypeOf(t *testing.T) {
	cls := &Type{Name: "Point"}
	inst := &Instance{Class: cls}
	if got := TypeOf(inst); got != cls {
		t.Errorf("TypeOf(instance): got %v, want its class", got)
	}
	if got := TypeOf(&Integer{Value: 1}); got != IntType {
		t.Errorf("TypeOf(integer): got %v, want IntType", got)
	}
	layer := &Layer{Class: cls}
	if got := TypeOf(layer); got != cls {
		t.Errorf("TypeOf(layer): got %v, want its class", got)
	}
}

func TestInstanceAttrBindsMethods(t *testing.T) {
	area := &Function{Name: "area", Params: []string{"self"}}
	cls := &Type{Name: "Rect", Methods: map[string]*Function{"area": area}}
	inst := &Instance{Class: cls, Fields: map[string]Value{"w": &Integer{Value: 3}}}

	if v, ok := inst.Attr("w"); !ok || !Equal(v, &Integer{Value: 3}) {
		t.Fatalf("field read: got %v, %t", v, ok)
	}
	v, ok := inst.Attr("area")
	if !ok {
		t.Fatalf("method read failed")
	}
	bm, ok := v.(*BoundMethod)
	if !ok {
		t.Fatalf("method read: got %T, want *BoundMethod", v)
	}
	if bm.Receiver != inst || bm.Fn != area {
		t.Errorf("bound method pairs wrong receiver/function: %v", bm.Inspect())
	}
	if _, ok := inst.Attr("missing"); ok {
		t.Errorf("missing attribute should not resolve")
	}
}

func TestLayerAttrResolvesThroughClass(t *testing.T) {
	call := &Function{Name: "__call__", Params: []string{"self", "x"}}
	cls := &Type{Name: "Linear", Methods: map[string]*Function{"__call__": call}}
	l := &Layer{Class: cls, Attrs: map[string]Value{"out_features": &Integer{Value: 8}}}

	if v, ok := l.Attr("out_features"); !ok || !Equal(v, &Integer{Value: 8}) {
		t.Fatalf("attr read: got %v, %t", v, ok)
	}
	v, ok := l.Attr("__call__")
	if !ok {
		t.Fatalf("__call__ not resolved through class")
	}
	if bm, ok := v.(*BoundMethod); !ok || bm.Fn != call {
		t.Errorf("__call__: got %T, want bound method of the class function", v)
	}
}

func TestBinaryOp(t *testing.T) {
	t2, err := NewTensor([]int64{2}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		op      string
		a, b    Value
		want    Value
		wantErr bool
	}{
		{"int add", "add", &Integer{Value: 2}, &Integer{Value: 3}, &Integer{Value: 5}, false},
		{"int mul", "mul", &Integer{Value: 2}, &Integer{Value: 3}, &Integer{Value: 6}, false},
		{"mixed add", "add", &Integer{Value: 2}, &Float{Value: 0.5}, &Float{Value: 2.5}, false},
		{"string concat", "add", &String{Value: "a"}, &String{Value: "b"}, &String{Value: "ab"}, false},
		{"tensor add", "add", t2, t2, &Tensor{Shape: []int64{2}, Data: []float64{2, 4}}, false},
		{"tensor scalar", "mul", t2, &Integer{Value: 2}, &Tensor{Shape: []int64{2}, Data: []float64{2, 4}}, false},
		{"scalar tensor", "sub", &Integer{Value: 10}, t2, &Tensor{Shape: []int64{2}, Data: []float64{9, 8}}, false},
		{"string sub", "sub", &String{Value: "a"}, &String{Value: "b"}, nil, true},
		{"nil add", "add", NIL, &Integer{Value: 1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryOp(tt.op, tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("got %s, want %s", got.Inspect(), tt.want.Inspect())
			}
		})
	}
}

func TestMatmul(t *testing.T) {
	a, _ := NewTensor([]int64{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int64{3, 2}, []float64{7, 8, 9, 10, 11, 12})
	got, err := BinaryOp("matmul", a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := &Tensor{Shape: []int64{2, 2}, Data: []float64{58, 64, 139, 154}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("matmul mismatch (-want +got):\n%s", diff)
	}

	if _, err := BinaryOp("matmul", a, a); err == nil {
		t.Errorf("incompatible shapes should fail")
	}
}

func TestTensorMethods(t *testing.T) {
	tt, _ := NewTensor([]int64{2, 2}, []float64{1, 2, 3, 4})

	sum, err := tt.CallMethod("sum", nil)
	if err != nil || !Equal(sum, &Float{Value: 10}) {
		t.Errorf("sum: got %v, %v", sum, err)
	}
	mean, err := tt.CallMethod("mean", nil)
	if err != nil || !Equal(mean, &Float{Value: 2.5}) {
		t.Errorf("mean: got %v, %v", mean, err)
	}
	re, err := tt.CallMethod("reshape", []Value{&Integer{Value: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if got := re.(*Tensor).Shape; len(got) != 1 || got[0] != 4 {
		t.Errorf("reshape: got shape %v, want [4]", got)
	}
	if _, err := tt.CallMethod("item", nil); err == nil {
		t.Errorf("item on 4 elements should fail")
	}
	if _, err := tt.CallMethod("nope", nil); err == nil {
		t.Errorf("unknown method should fail")
	}
}

func TestDebugIntrinsicIdentity(t *testing.T) {
	if !IsDebugIntrinsic(AssertFunc) || !IsDebugIntrinsic(DebugPrintFunc) || !IsDebugIntrinsic(BreakpointFunc) {
		t.Errorf("sentinels must be recognized")
	}
	if IsDebugIntrinsic(&Function{Name: "debug_assert"}) {
		t.Errorf("recognition is by identity, not by name")
	}
}

func TestAPIRegistry(t *testing.T) {
	if _, ok := API("add"); !ok {
		t.Fatalf("add api missing")
	}
	if _, ok := API("nope"); ok {
		t.Fatalf("unknown api should not resolve")
	}
	got, err := MustAPI("relu").Fn(&Tensor{Shape: []int64{3}, Data: []float64{-1, 0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := &Tensor{Shape: []int64{3}, Data: []float64{0, 0, 2}}
	if !Equal(got, want) {
		t.Errorf("relu: got %s, want %s", got.Inspect(), want.Inspect())
	}

	shape, err := MustAPI("shape").Fn(&Tensor{Shape: []int64{2, 3}, Data: make([]float64, 6)})
	if err != nil {
		t.Fatal(err)
	}
	wantShape := &Tensor{Shape: []int64{2}, Data: []float64{2, 3}}
	if !Equal(shape, wantShape) {
		t.Errorf("shape: got %s, want %s", shape.Inspect(), wantShape.Inspect())
	}
}
