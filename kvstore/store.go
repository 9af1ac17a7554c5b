// Package kvstore provides the small persistent key-value contract the token store
// writes through to, with in-memory, Redis and SQLite implementations.
package kvstore

import "context"

// Store is a string-keyed byte store. All implementations must be thread-safe and
// context-aware.
type Store interface {
	// Get returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites any existing value. Values never expire.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases resources. A second Close returns ErrClosed.
	Close() error
}

// Scoped returns a Store that prepends prefix to every key before delegating.
func Scoped(store Store, prefix string) Store {
	if prefix == "" {
		return store
	}
	return &scoped{inner: store, prefix: prefix}
}

type scoped struct {
	inner  Store
	prefix string
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	return s.inner.Delete(ctx, full...)
}

func (s *scoped) Close() error {
	return s.inner.Close()
}
