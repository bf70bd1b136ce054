package value

import "fmt"

// Layer is a stateful callable unit: parameters and configuration live in
// Attrs, submodules in Sublayers, and Training is the mode flag the replay
// checker must re-validate. Builtin marks units the trace can apply as a
// single symbolic operation; Unit is that operation's direct implementation.
// Hooked or composite layers are traced through their guest __call__ instead.
type Layer struct {
	Class     *Type
	Attrs     map[string]Value
	Training  bool
	Builtin   bool
	Unit      *NativeFunc
	PreHooks  []*Function
	PostHooks []*Function
	Sublayers []*Layer
}

func (l *Layer) Kind() Kind { return LAYER_KIND }

func (l *Layer) Inspect() string {
	name := "layer"
	if l.Class != nil {
		name = l.Class.Name
	}
	return fmt.Sprintf("<layer %s training=%t>", name, l.Training)
}

// Attr reads an attribute: own namespace first, then class methods bound to
// the layer. The class lookup is what resolves method descriptors; callers
// must not reach into Class.Methods directly.
func (l *Layer) Attr(name string) (Value, bool) {
	if v, ok := l.Attrs[name]; ok {
		return v, true
	}
	if fn, ok := l.Class.LookupMethod(name); ok {
		return &BoundMethod{Receiver: l, Fn: fn}, true
	}
	return nil, false
}

// SetAttr writes into the layer's own namespace.
func (l *Layer) SetAttr(name string, v Value) {
	if l.Attrs == nil {
		l.Attrs = map[string]Value{}
	}
	l.Attrs[name] = v
}

// HasHooks reports whether any pre or post hooks are installed.
func (l *Layer) HasHooks() bool {
	return len(l.PreHooks) > 0 || len(l.PostHooks) > 0
}

// Composite reports whether the layer is a container of sublayers.
func (l *Layer) Composite() bool { return len(l.Sublayers) > 0 }
