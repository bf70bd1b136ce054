package gotrace

import (
	"io"
	"log/slog"

	"github.com/podhmo/go-trace/cache"
	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/value"
	"github.com/podhmo/go-trace/variable"
)

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger routes trace progress and fallback decisions to logger. The
// default discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithGlobals adds entries to the guest global namespace. Entries override
// same-named defaults from Builtins().
func WithGlobals(globals map[string]value.Value) Option {
	return func(t *Tracer) {
		for name, v := range globals {
			t.globals[name] = v
		}
	}
}

// WithTables replaces the built-in classification tables.
func WithTables(tables *classify.Tables) Option {
	return func(t *Tracer) {
		t.tables = tables
	}
}

// WithDispatcher replaces the default builtin dispatcher.
func WithDispatcher(d *variable.Dispatcher) Option {
	return func(t *Tracer) {
		t.dispatcher = d
	}
}

// WithCache lets TraceCached store and reuse trace payloads.
func WithCache(c *cache.Cache) Option {
	return func(t *Tracer) {
		t.cache = c
	}
}

// WithStdout redirects print output produced by direct (fallback) execution.
func WithStdout(w io.Writer) Option {
	return func(t *Tracer) {
		t.stdout = w
	}
}
