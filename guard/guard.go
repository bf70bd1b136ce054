// Package guard defines trace-reuse guard expressions: frame-relative boolean
// conditions plus the free variables they close over. The replay-time checker
// evaluates them against a live frame to decide whether a compiled trace may
// be reused without re-tracing.
package guard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/podhmo/go-trace/value"
)

// Expr is one guard clause. Source is an expression over frame accessors
// (locals["x"], globals["f"], attribute chains) and the names in FreeVars;
// FreeVars captures the values those names had at trace time.
type Expr struct {
	Source   string
	FreeVars map[string]value.Value
}

// Equals builds the clause "<e.Source> == <name>" capturing captured as name.
func (e Expr) Equals(name string, captured value.Value) Expr {
	return Expr{
		Source:   fmt.Sprintf("%s == %s", e.Source, name),
		FreeVars: Union(e.FreeVars, map[string]value.Value{name: captured}),
	}
}

// Attr extends a frame expression by one attribute step.
func (e Expr) Attr(name string) Expr {
	return Expr{
		Source:   fmt.Sprintf("%s.%s", e.Source, name),
		FreeVars: e.FreeVars,
	}
}

func (e Expr) String() string {
	if len(e.FreeVars) == 0 {
		return e.Source
	}
	names := make([]string, 0, len(e.FreeVars))
	for name := range e.FreeVars {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%s", name, value.Repr(e.FreeVars[name]))
	}
	return fmt.Sprintf("%s  [%s]", e.Source, strings.Join(parts, ", "))
}

// Union merges free-variable sets; later maps win on name collisions.
func Union(maps ...map[string]value.Value) map[string]value.Value {
	out := map[string]value.Value{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Render produces a deterministic textual form of a guard sequence, used by
// trace dumps and the cache payload.
func Render(exprs []Expr) []string {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		out[i] = e.String()
	}
	return out
}
