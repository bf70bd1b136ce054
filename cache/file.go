package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iancoleman/orderedmap"
)

// MemoryStore is the zero-persistence backend: a mutex-guarded map, useful
// for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*Entry{}}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.Key]; !ok {
		s.order = append(s.order, e.Key)
	}
	s.entries[e.Key] = e
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStore) Close() error { return nil }

// FileStore persists entries in one JSON file, keyed by trace key in
// insertion order so reopening and re-saving produces stable diffs. Writes
// go through immediately; there is no separate save step.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries *orderedmap.OrderedMap
	logger  *slog.Logger
}

// OpenFile loads the store at path. A missing file is an empty store; a file
// that fails to decode is logged and replaced on the next write rather than
// aborting the run. logger may be nil.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &FileStore{path: path, entries: orderedmap.New(), logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read cache file %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	raw := orderedmap.New()
	if err := json.Unmarshal(data, raw); err != nil {
		logger.Warn("cache file is corrupt, starting empty", "path", path, "error", err)
		return s, nil
	}
	for _, key := range raw.Keys() {
		v, _ := raw.Get(key)
		// values decode generically; round-trip each through JSON to type it
		b, err := json.Marshal(v)
		if err != nil {
			logger.Warn("skipping unreadable cache entry", "path", path, "key", key, "error", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			logger.Warn("skipping unreadable cache entry", "path", path, "key", key, "error", err)
			continue
		}
		s.entries.Set(key, &e)
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.(*Entry), true, nil
}

func (s *FileStore) Put(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(e.Key, e)
	return s.save()
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.entries.Keys()...), nil
}

func (s *FileStore) Close() error { return nil }

// save writes the whole map back. Callers hold the write lock.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	if err := os.WriteFile(s.path, data, 0640); err != nil {
		return fmt.Errorf("write cache file %s: %w", s.path, err)
	}
	return nil
}

// Path returns the backing file's location.
func (s *FileStore) Path() string { return s.path }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
