package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	rendered    TEXT NOT NULL,
	hit_count   INTEGER NOT NULL DEFAULT 0,
	last_access INTEGER NOT NULL
);`

// SQLiteStore persists cache entries across process restarts. Writes go
// through upserts inside implicit transactions, so readers never observe a
// partially written entry.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the entry for key, bumping its hit counter and last-access time.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1, last_access = ? WHERE key = ?`,
		now.UnixMilli(), key)
	if err != nil {
		return Entry{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Entry{}, false, err
	}
	if affected == 0 {
		return Entry{}, false, nil
	}

	var entry Entry
	var lastAccess int64
	row := s.db.QueryRowContext(ctx,
		`SELECT key, rendered, hit_count, last_access FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&entry.Key, &entry.Rendered, &entry.HitCount, &lastAccess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	entry.LastAccess = time.UnixMilli(lastAccess)
	return entry, true, nil
}

// Put stores the rendered text under key, resetting bookkeeping for the key.
func (s *SQLiteStore) Put(ctx context.Context, key, rendered string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, rendered, hit_count, last_access) VALUES (?, ?, 0, ?)
		 ON CONFLICT(key) DO UPDATE SET rendered = excluded.rendered, hit_count = 0, last_access = excluded.last_access`,
		key, rendered, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
