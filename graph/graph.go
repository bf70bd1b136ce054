// Package graph builds the symbolic program a trace produces. It implements
// the trace-builder contract of package variable: emitting statements for
// native APIs, tensor methods and stateful units, wrapping newly observed
// values through the factory, and the checkpoint/restore discipline that
// makes speculative inlining transactional.
package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/podhmo/go-trace/internal/namegen"
	"github.com/podhmo/go-trace/value"
	"github.com/podhmo/go-trace/variable"
)

// Statement kinds.
const (
	StmtAPI          = "api"
	StmtTensorMethod = "tensor_method"
	StmtLayer        = "layer"
	StmtPrint        = "print"
)

// Statement is one symbolic operation, in trace order. Operands appear as
// variable IDs; keyword operands as "name=id", sorted by name.
type Statement struct {
	Kind   string   `json:"kind" yaml:"kind"`
	Op     string   `json:"op" yaml:"op"`
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Output string   `json:"output,omitempty" yaml:"output,omitempty"`
}

func (s Statement) String() string {
	switch s.Kind {
	case StmtTensorMethod:
		if len(s.Inputs) == 0 {
			return fmt.Sprintf("%s = ?.%s()", s.Output, s.Op)
		}
		return fmt.Sprintf("%s = %s.%s(%s)", s.Output, s.Inputs[0], s.Op, strings.Join(s.Inputs[1:], ", "))
	case StmtPrint:
		return fmt.Sprintf("print(%s)", strings.Join(s.Inputs, ", "))
	default:
		return fmt.Sprintf("%s = %s(%s)", s.Output, s.Op, strings.Join(s.Inputs, ", "))
	}
}

// Program is the serializable form of a finished trace.
type Program struct {
	TraceID    string      `json:"trace_id" yaml:"trace_id"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

type memo struct {
	stmts   int
	journal int
	inputs  int
	marks   map[string]int
}

// Graph is the mutable trace state. One trace attempt owns one Graph; it is
// not safe for concurrent use.
type Graph struct {
	id      uuid.UUID
	logger  *slog.Logger
	factory *variable.Factory

	names   map[string]*namegen.Generator
	stmts   []Statement
	inputs  []variable.Variable
	journal []func()
	proxies map[value.Value]*variable.AttrProxy
	symbols map[value.Value]string

	memos   map[variable.Token]memo
	nextTok variable.Token
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger; nil keeps the discarding default.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New builds an empty graph over the given constructor registry.
func New(factory *variable.Factory, options ...Option) *Graph {
	g := &Graph{
		id:      uuid.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		factory: factory,
		names:   map[string]*namegen.Generator{},
		proxies: map[value.Value]*variable.AttrProxy{},
		symbols: map[value.Value]string{},
		memos:   map[variable.Token]memo{},
	}
	for _, opt := range options {
		opt(g)
	}
	g.logger = g.logger.With("trace_id", g.id.String())
	return g
}

// TraceID identifies this trace attempt in logs and cache entries.
func (g *Graph) TraceID() uuid.UUID { return g.id }

func (g *Graph) Logger() *slog.Logger { return g.logger }

// FreshName issues the next name for a prefix. Restore rewinds the sequences,
// so a rolled-back trace reissues the same names.
func (g *Graph) FreshName(prefix string) string {
	gen, ok := g.names[prefix]
	if !ok {
		gen = namegen.New(prefix)
		g.names[prefix] = gen
	}
	return gen.Next()
}

// FromValue wraps a host value through the factory. Values with frame-origin
// provenance register as trace inputs; their guards validate replay.
func (g *Graph) FromValue(v value.Value, t variable.Tracker) (variable.Variable, error) {
	out, err := g.factory.FromValue(v, g, t)
	if err != nil {
		return nil, err
	}
	switch t.(type) {
	case *variable.LocalTracker, *variable.GlobalTracker:
		g.inputs = append(g.inputs, out)
	}
	return out, nil
}

// Inputs lists the frame-origin variables observed so far.
func (g *Graph) Inputs() []variable.Variable {
	return append([]variable.Variable(nil), g.inputs...)
}

func (g *Graph) newResult(t variable.Tracker) (variable.Variable, error) {
	placeholder := value.Zeros(0)
	return g.factory.FromValue(placeholder, g, t)
}

func operandIDs(args []variable.Variable, kwargs map[string]variable.Variable) []string {
	out := make([]string, 0, len(args)+len(kwargs))
	for _, a := range args {
		out = append(out, a.ID())
	}
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, name+"="+kwargs[name].ID())
	}
	return out
}

func callInputs(args []variable.Variable, kwargs map[string]variable.Variable) []variable.Variable {
	out := append([]variable.Variable(nil), args...)
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, kwargs[name])
	}
	return out
}

// CallAPI emits one symbolic native-API operation and returns its result.
func (g *Graph) CallAPI(ctx context.Context, fn *value.NativeFunc, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	out, err := g.newResult(variable.NewSynthesizedTracker(callInputs(args, kwargs)...))
	if err != nil {
		return nil, err
	}
	g.stmts = append(g.stmts, Statement{
		Kind:   StmtAPI,
		Op:     fn.Name,
		Inputs: operandIDs(args, kwargs),
		Output: out.ID(),
	})
	g.logger.DebugContext(ctx, "call api", "fn", fn.Name, "out", out.ID())
	return out, nil
}

// CallTensorMethod emits one symbolic intrinsic-method operation. The
// receiver is the first operand.
func (g *Graph) CallTensorMethod(ctx context.Context, name string, recv variable.Variable, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	out, err := g.newResult(variable.NewSynthesizedTracker(append([]variable.Variable{recv}, callInputs(args, kwargs)...)...))
	if err != nil {
		return nil, err
	}
	g.stmts = append(g.stmts, Statement{
		Kind:   StmtTensorMethod,
		Op:     name,
		Inputs: append([]string{recv.ID()}, operandIDs(args, kwargs)...),
		Output: out.ID(),
	})
	g.logger.DebugContext(ctx, "call tensor method", "method", name, "recv", recv.ID(), "out", out.ID())
	return out, nil
}

// CallLayer emits one apply-stateful-unit operation. Each distinct layer
// value gets a stable unit symbol (layer_0, layer_1, ...) on first use.
func (g *Graph) CallLayer(ctx context.Context, layer variable.Variable, args []variable.Variable, kwargs map[string]variable.Variable) (variable.Variable, error) {
	symbol := g.layerSymbol(layer.Value())
	out, err := g.newResult(variable.NewSynthesizedTracker(append([]variable.Variable{layer}, callInputs(args, kwargs)...)...))
	if err != nil {
		return nil, err
	}
	g.stmts = append(g.stmts, Statement{
		Kind:   StmtLayer,
		Op:     symbol,
		Inputs: append([]string{layer.ID()}, operandIDs(args, kwargs)...),
		Output: out.ID(),
	})
	g.logger.DebugContext(ctx, "call layer", "unit", symbol, "out", out.ID())
	return out, nil
}

func (g *Graph) layerSymbol(v value.Value) string {
	if s, ok := g.symbols[v]; ok {
		return s
	}
	s := g.FreshName("layer")
	g.symbols[v] = s
	g.journal = append(g.journal, func() { delete(g.symbols, v) })
	return s
}

// RecordPrint appends a print statement. Prints join the statement order but
// not the value flow: they have no output.
func (g *Graph) RecordPrint(args []variable.Variable) {
	g.stmts = append(g.stmts, Statement{
		Kind:   StmtPrint,
		Op:     "print",
		Inputs: operandIDs(args, nil),
	})
}

// Proxy returns the mutation-tracking attribute cache for owner's value,
// creating it on first use. Creation and every later mutation journal an
// undo, so Restore removes post-checkpoint entries exactly.
func (g *Graph) Proxy(owner variable.Variable, load variable.AttrLoader) *variable.AttrProxy {
	key := owner.Value()
	if p, ok := g.proxies[key]; ok {
		return p
	}
	p := variable.NewAttrProxy(load, g.recordUndo)
	g.proxies[key] = p
	g.recordUndo(func() { delete(g.proxies, key) })
	return p
}

func (g *Graph) recordUndo(undo func()) {
	g.journal = append(g.journal, undo)
}

// Checkpoint snapshots the trace state.
func (g *Graph) Checkpoint() variable.Token {
	tok := g.nextTok
	g.nextTok++
	marks := make(map[string]int, len(g.names))
	for prefix, gen := range g.names {
		marks[prefix] = gen.Mark()
	}
	g.memos[tok] = memo{
		stmts:   len(g.stmts),
		journal: len(g.journal),
		inputs:  len(g.inputs),
		marks:   marks,
	}
	return tok
}

// Restore rewinds to a snapshot, discarding every statement, proxy mutation,
// input registration and issued name since. The token stays valid for
// further restores; tokens taken after it do not. Restoring an unknown token
// panics: that is API misuse, not a guest condition.
func (g *Graph) Restore(tok variable.Token) {
	m, ok := g.memos[tok]
	if !ok {
		panic(fmt.Sprintf("graph: restore of unknown token %d", tok))
	}
	for len(g.journal) > m.journal {
		undo := g.journal[len(g.journal)-1]
		g.journal = g.journal[:len(g.journal)-1]
		undo()
	}
	g.stmts = g.stmts[:m.stmts]
	g.inputs = g.inputs[:m.inputs]
	for prefix, gen := range g.names {
		if mark, ok := m.marks[prefix]; ok {
			gen.Reset(mark)
		} else {
			gen.Reset(0)
		}
	}
	for t := range g.memos {
		if t > tok {
			delete(g.memos, t)
		}
	}
	g.logger.Debug("restore", "token", uint64(tok), "statements", len(g.stmts))
}

// Statements returns a copy of the trace so far.
func (g *Graph) Statements() []Statement {
	return append([]Statement(nil), g.stmts...)
}

// Program freezes the trace into its serializable form.
func (g *Graph) Program() *Program {
	return &Program{
		TraceID:    g.id.String(),
		Statements: g.Statements(),
	}
}

// Dump writes the human-readable statement list.
func (g *Graph) Dump(w io.Writer) {
	for _, s := range g.stmts {
		fmt.Fprintln(w, s.String())
	}
}

var _ variable.Graph = (*Graph)(nil)
