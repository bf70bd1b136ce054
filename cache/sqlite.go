package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in a SQLite database, one row per key with
// the full entry as a JSON payload. The columns outside the payload exist
// for ad-hoc inspection only; reads decode the payload.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS traces (
	key            TEXT PRIMARY KEY,
	format_version TEXT NOT NULL,
	trace_id       TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	payload        TEXT NOT NULL
);`

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a process-local store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM traces WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %q: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, false, fmt.Errorf("decode entry %q: %w", key, err)
	}
	return &e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %q: %w", e.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (key, format_version, trace_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			format_version = excluded.format_version,
			trace_id       = excluded.trace_id,
			created_at     = excluded.created_at,
			payload        = excluded.payload`,
		e.Key, e.FormatVersion, e.TraceID, e.CreatedAt.Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("upsert %q: %w", e.Key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM traces ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
