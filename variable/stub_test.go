package variable

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/podhmo/go-trace/value"
)

// stubGraph satisfies Graph for unit tests of dispatch mechanics. Symbolic
// calls return constants; the journal supports real checkpoint/restore so
// rollback behavior is observable.
type stubGraph struct {
	factory *Factory
	seq     map[string]int
	undo    []func()
	marks   map[Token]int
	tok     Token

	apiCalls      []string
	methodCalls   []string
	layerCalls    int
	prints        [][]Variable
	restoredTimes int

	proxies map[value.Value]*AttrProxy
}

func newStubGraph(f *Factory) *stubGraph {
	return &stubGraph{
		factory: f,
		seq:     map[string]int{},
		marks:   map[Token]int{},
		proxies: map[value.Value]*AttrProxy{},
	}
}

func (g *stubGraph) FromValue(v value.Value, t Tracker) (Variable, error) {
	if g.factory == nil {
		return NewConstant(v, g, t), nil
	}
	return g.factory.FromValue(v, g, t)
}

func (g *stubGraph) FreshName(prefix string) string {
	n := g.seq[prefix]
	g.seq[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

func (g *stubGraph) CallAPI(ctx context.Context, fn *value.NativeFunc, args []Variable, kwargs map[string]Variable) (Variable, error) {
	g.apiCalls = append(g.apiCalls, fn.Name)
	return NewConstant(value.NIL, g, NewSynthesizedTracker(args...)), nil
}

func (g *stubGraph) CallTensorMethod(ctx context.Context, name string, recv Variable, args []Variable, kwargs map[string]Variable) (Variable, error) {
	g.methodCalls = append(g.methodCalls, name)
	return NewConstant(value.NIL, g, NewSynthesizedTracker(recv)), nil
}

func (g *stubGraph) CallLayer(ctx context.Context, layer Variable, args []Variable, kwargs map[string]Variable) (Variable, error) {
	g.layerCalls++
	return NewConstant(value.NIL, g, NewSynthesizedTracker(layer)), nil
}

func (g *stubGraph) RecordPrint(args []Variable) {
	g.prints = append(g.prints, args)
}

func (g *stubGraph) Checkpoint() Token {
	g.tok++
	g.marks[g.tok] = len(g.undo)
	return g.tok
}

func (g *stubGraph) Restore(tok Token) {
	mark, ok := g.marks[tok]
	if !ok {
		panic(fmt.Sprintf("restore of unknown token %d", tok))
	}
	for len(g.undo) > mark {
		last := g.undo[len(g.undo)-1]
		g.undo = g.undo[:len(g.undo)-1]
		last()
	}
	g.restoredTimes++
}

func (g *stubGraph) Proxy(owner Variable, load AttrLoader) *AttrProxy {
	if p, ok := g.proxies[owner.Value()]; ok {
		return p
	}
	p := NewAttrProxy(load, func(undo func()) { g.undo = append(g.undo, undo) })
	g.proxies[owner.Value()] = p
	return p
}

func (g *stubGraph) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubInliner records what it was asked to inline and replies with a canned
// result or error.
type stubInliner struct {
	calls   int
	lastFn  *value.Function
	lastVar *UserFunctionVariable
	args    []Variable
	kwargs  map[string]Variable
	result  func(g Graph) (Variable, error)
	err     error
}

func (s *stubInliner) InlineCall(ctx context.Context, fn *UserFunctionVariable, args []Variable, kwargs map[string]Variable) (Variable, error) {
	s.calls++
	s.lastFn = fn.Fn()
	s.lastVar = fn
	s.args = args
	s.kwargs = kwargs
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result(fn.Graph())
	}
	return NewConstant(value.NIL, fn.Graph(), NewSynthesizedTracker(fn)), nil
}
