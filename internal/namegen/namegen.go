// Package namegen provides deterministic name sequences for trace symbols.
package namegen

import "fmt"

// Generator hands out names of the form "<prefix>_<n>", starting at 0.
// It is not safe for concurrent use; a trace attempt is single-threaded.
type Generator struct {
	prefix string
	next   int
}

func New(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// Next returns the next name in the sequence.
func (g *Generator) Next() string {
	name := fmt.Sprintf("%s_%d", g.prefix, g.next)
	g.next++
	return name
}

// Mark reports the current position, for later Reset.
func (g *Generator) Mark() int { return g.next }

// Reset rewinds the sequence so that names issued after a rollback
// repeat the discarded ones. Forward resets are not allowed.
func (g *Generator) Reset(mark int) {
	if mark > g.next {
		panic(fmt.Sprintf("namegen: reset forward (%d > %d)", mark, g.next))
	}
	g.next = mark
}
