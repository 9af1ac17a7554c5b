package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	got[0] = 'x'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again, "returned slice must be a copy")

	require.NoError(t, m.Delete(ctx, "k", "never-set"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClose(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Close(), ErrClosed)

	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(context.Background(), "k", nil), ErrClosed)
}

func TestScopedSecondCloseReportsClosed(t *testing.T) {
	s := Scoped(NewMemory(), "app_")
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrClosed)
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	assert.ErrorIs(t, m.Set(ctx, "k", []byte("v")), context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := Scoped(m, "@ayska_")

	require.NoError(t, s.Set(ctx, "auth_token", []byte("a")))
	require.NoError(t, s.Set(ctx, "refresh_token", []byte("r")))

	raw, err := m.Get(ctx, "@ayska_auth_token")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), raw)

	require.NoError(t, s.Delete(ctx, "auth_token", "refresh_token"))
	assert.Equal(t, 0, m.Len())

	assert.Same(t, m, Scoped(m, ""))
}

func TestErrorTypes(t *testing.T) {
	underlying := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"config", NewConfigError("redis.host", "host is required", underlying), "kvstore configuration error: redis.host"},
		{"connection", NewConnectionError("ping", "localhost:6379", underlying), "ping failed for localhost:6379"},
		{"operation", NewOperationError("get", "k", underlying), `get failed for key "k"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.ErrorIs(t, tt.err, underlying)
		})
	}

	assert.Equal(t, "kvstore configuration error: f: m", NewConfigError("f", "m", nil).Error())
}
