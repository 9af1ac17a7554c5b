// Package sqlite implements kvstore.Store on an on-disk SQLite database, for
// tokens that must survive process restarts on a single device.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ayska/apiclient/kvstore"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists key-value pairs in a single SQLite table.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
	now    func() time.Time
}

var _ kvstore.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, kvstore.NewConfigError("sqlite.path", "path is required", nil)
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kvstore.NewConnectionError("open", cleanPath, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, kvstore.NewConnectionError("ping", cleanPath, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return New(db, cleanPath), nil
}

// New wraps an open handle whose kv table already exists.
func New(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path, now: time.Now}
}

// Get returns kvstore.ErrNotFound if the key doesn't exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewOperationError("get", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return kvstore.NewOperationError("set", key, err)
	}
	return nil
}

// Delete removes keys inside one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kvstore.NewOperationError("delete", keys[0], err)
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return kvstore.NewOperationError("delete", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return kvstore.NewOperationError("delete", keys[0], err)
	}
	return nil
}

// Path returns the cleaned database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database handle. Calling it twice returns kvstore.ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return kvstore.ErrClosed
	}
	return s.db.Close()
}
