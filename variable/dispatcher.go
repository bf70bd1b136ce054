package variable

import (
	"context"
	"fmt"
	"strings"
)

// Handler emits the symbolic operation(s) for one builtin call shape and
// returns the result variable.
type Handler func(ctx context.Context, g Graph, args []Variable, kwargs map[string]Variable) (Variable, error)

// Pattern describes the argument shape a handler accepts. Arity -1 matches
// any count. Kinds, when present, constrain positions left to right; an empty
// kind matches anything at that position.
type Pattern struct {
	Arity int
	Kinds []Kind
}

// AnyArity marks a pattern matching every argument count.
const AnyArity = -1

func (p Pattern) matches(args []Variable) bool {
	if p.Arity != AnyArity && len(args) != p.Arity {
		return false
	}
	if len(p.Kinds) > len(args) {
		return false
	}
	for i, k := range p.Kinds {
		if k != "" && args[i].Kind() != k {
			return false
		}
	}
	return true
}

func (p Pattern) equal(o Pattern) bool {
	if p.Arity != o.Arity || len(p.Kinds) != len(o.Kinds) {
		return false
	}
	for i, k := range p.Kinds {
		if o.Kinds[i] != k {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	if len(p.Kinds) == 0 {
		if p.Arity == AnyArity {
			return "(*)"
		}
		return fmt.Sprintf("(%d args)", p.Arity)
	}
	kinds := make([]string, len(p.Kinds))
	for i, k := range p.Kinds {
		if k == "" {
			kinds[i] = "_"
		} else {
			kinds[i] = string(k)
		}
	}
	return "(" + strings.Join(kinds, ", ") + ")"
}

type patternHandler struct {
	pattern Pattern
	handler Handler
}

// Dispatcher is the first tier of builtin-call resolution: an ordered table
// from builtin name and argument shape to a handler. Registration order
// decides ties between overlapping patterns.
type Dispatcher struct {
	handlers map[string][]patternHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string][]patternHandler{}}
}

// Register adds a handler for one (name, pattern) key. Registering the exact
// same pattern twice for a name is an error.
func (d *Dispatcher) Register(name string, pat Pattern, h Handler) error {
	for _, ph := range d.handlers[name] {
		if ph.pattern.equal(pat) {
			return fmt.Errorf("dispatcher: %s%s already registered", name, pat)
		}
	}
	d.handlers[name] = append(d.handlers[name], patternHandler{pattern: pat, handler: h})
	return nil
}

// Dispatch finds the first handler whose pattern matches the arguments.
func (d *Dispatcher) Dispatch(name string, args []Variable) (Handler, bool) {
	for _, ph := range d.handlers[name] {
		if ph.pattern.matches(args) {
			return ph.handler, true
		}
	}
	return nil, false
}
