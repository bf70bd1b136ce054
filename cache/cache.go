// Package cache persists finished traces keyed by call-site shape, so a
// frame whose guards still hold can reuse a compiled trace instead of
// re-tracing. Backends range from an in-process map to a JSON file and a
// SQLite database; the Cache front coalesces concurrent computations of the
// same key and refuses entries written in an incompatible payload format.
package cache

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"github.com/podhmo/go-trace/graph"
)

// FormatVersion is the payload version written into every entry. Entries
// from a different major version, or from a newer build, are treated as
// misses rather than migrated.
const FormatVersion = "v1.0.0"

// Entry is one cached trace.
type Entry struct {
	Key           string            `json:"key" yaml:"key"`
	FormatVersion string            `json:"format_version" yaml:"format_version"`
	TraceID       string            `json:"trace_id" yaml:"trace_id"`
	CreatedAt     time.Time         `json:"created_at" yaml:"created_at"`
	Statements    []graph.Statement `json:"statements" yaml:"statements"`
	Guards        []string          `json:"guards,omitempty" yaml:"guards,omitempty"`
}

// NewEntry packages a finished trace for storage.
func NewEntry(key string, program *graph.Program, guards []string) *Entry {
	return &Entry{
		Key:           key,
		FormatVersion: FormatVersion,
		TraceID:       program.TraceID,
		CreatedAt:     time.Now().UTC(),
		Statements:    program.Statements,
		Guards:        guards,
	}
}

// Store is one persistence backend. Get's second result distinguishes a miss
// from an error; a miss is not an error.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, e *Entry) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Compatible reports whether an entry's payload version can be served by
// this build: a valid semver with the same major version, no newer than
// FormatVersion.
func Compatible(version string) bool {
	if !semver.IsValid(version) {
		return false
	}
	return semver.Major(version) == semver.Major(FormatVersion) &&
		semver.Compare(version, FormatVersion) <= 0
}

// Cache fronts a Store with single-flight computation: concurrent misses on
// the same key run the compute function once and share its result.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger routes hit/miss decisions to logger. The default discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(store Store, options ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// GetOrCompute returns the entry for key, computing and storing it on a
// miss. An entry with an incompatible format version counts as a miss and is
// overwritten by the fresh computation.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (*Entry, error)) (*Entry, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		e, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok && Compatible(e.FormatVersion) {
			c.logger.DebugContext(ctx, "cache hit", "key", key, "trace_id", e.TraceID)
			return e, nil
		}
		if ok {
			c.logger.WarnContext(ctx, "discarding incompatible cache entry",
				"key", key, "entry_version", e.FormatVersion, "format_version", FormatVersion)
		}
		e, err = compute(ctx)
		if err != nil {
			return nil, err
		}
		e.Key = key
		e.FormatVersion = FormatVersion
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if err := c.store.Put(ctx, e); err != nil {
			return nil, err
		}
		c.logger.DebugContext(ctx, "cache store", "key", key, "trace_id", e.TraceID)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}
