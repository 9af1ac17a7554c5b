package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayska/apiclient/kvstore"
)

var baseTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, now *time.Time) (*Store, *kvstore.Memory) {
	t.Helper()
	mem := kvstore.NewMemory()
	s := New(kvstore.Scoped(mem, DefaultPrefix), WithClock(func() time.Time { return *now }))
	return s, mem
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

type failingKV struct {
	*kvstore.Memory
	setErr    error
	deleteErr error
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *failingKV) Delete(ctx context.Context, keys ...string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.Delete(ctx, keys...)
}

func TestTokenExpiredAt(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		now     time.Time
		want    bool
	}{
		{"unknown expiry", time.Time{}, baseTime, true},
		{"well before skew window", baseTime.Add(time.Hour), baseTime, false},
		{"inside skew window", baseTime.Add(4 * time.Minute), baseTime, true},
		{"exactly at skew boundary", baseTime.Add(5 * time.Minute), baseTime, true},
		{"one second outside window", baseTime.Add(5*time.Minute + time.Second), baseTime, false},
		{"already past", baseTime.Add(-time.Minute), baseTime, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Token{AccessToken: "a", ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, tok.ExpiredAt(tt.now, DefaultSkew))
		})
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s, mem := newTestStore(t, &now)

	_, err := s.AccessToken(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.True(t, s.IsExpired(ctx))

	require.NoError(t, s.Save(ctx, Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    baseTime.Add(time.Hour),
	}))

	raw, err := mem.Get(ctx, "@ayska_auth_token")
	require.NoError(t, err)
	assert.Equal(t, "access-1", string(raw))
	rawExp, err := mem.Get(ctx, "@ayska_token_expires_at")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10T13:00:00Z", string(rawExp))

	access, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
	assert.False(t, s.IsExpired(ctx))

	reloaded := New(kvstore.Scoped(mem, DefaultPrefix))
	tok, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(time.Hour)))
}

func TestStoreSaveKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s, _ := newTestStore(t, &now)

	require.NoError(t, s.Save(ctx, Token{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: baseTime.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, Token{AccessToken: "a2", ExpiresAt: baseTime.Add(2 * time.Hour)}))

	refresh, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)
}

func TestStoreExpiryNeverDecreases(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s, _ := newTestStore(t, &now)

	require.NoError(t, s.Save(ctx, Token{AccessToken: "a1", ExpiresAt: baseTime.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, Token{AccessToken: "a2", ExpiresAt: baseTime.Add(10 * time.Minute)}))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(time.Hour)))

	require.NoError(t, s.ClearAll(ctx))
	require.NoError(t, s.Save(ctx, Token{AccessToken: "a3", ExpiresAt: baseTime.Add(10 * time.Minute)}))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(baseTime.Add(10*time.Minute)), "cleared state starts a fresh expiry")
}

func TestStoreSaveDerivesExpiryFromJWT(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s, _ := newTestStore(t, &now)

	exp := baseTime.Add(30 * time.Minute)
	require.NoError(t, s.Save(ctx, Token{AccessToken: signedJWT(t, exp)}))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(exp))

	now = exp.Add(-4 * time.Minute)
	assert.True(t, s.IsExpired(ctx))
}

func TestStoreSaveRejectsEmptyToken(t *testing.T) {
	now := baseTime
	s, _ := newTestStore(t, &now)
	assert.ErrorIs(t, s.Save(context.Background(), Token{}), ErrNoToken)
}

func TestStoreSaveFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{Memory: kvstore.NewMemory()}
	s := New(kv)

	require.NoError(t, s.Save(ctx, Token{AccessToken: "a1", ExpiresAt: baseTime}))

	kv.setErr = errors.New("disk full")
	err := s.Save(ctx, Token{AccessToken: "a2", ExpiresAt: baseTime.Add(time.Hour)})
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.setErr)

	access, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", access)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s, mem := newTestStore(t, &now)

	require.NoError(t, s.Save(ctx, Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: baseTime.Add(time.Hour)}))
	require.NoError(t, s.SaveUserData(ctx, []byte(`{"id":"u1"}`)))

	require.NoError(t, s.Clear(ctx))
	_, err := s.AccessToken(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
	user, err := s.UserData(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(user))

	require.NoError(t, s.ClearAll(ctx))
	_, err = s.UserData(ctx)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	assert.Equal(t, 0, mem.Len())
}

func TestStoreClearAllResetsSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{Memory: kvstore.NewMemory()}
	s := New(kv)
	require.NoError(t, s.Save(ctx, Token{AccessToken: "a", ExpiresAt: baseTime}))

	kv.deleteErr = errors.New("unavailable")
	assert.Error(t, s.ClearAll(ctx))

	_, err := s.AccessToken(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStoreIgnoresCorruptExpiry(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	require.NoError(t, mem.Set(ctx, KeyAccessToken, []byte("a")))
	require.NoError(t, mem.Set(ctx, KeyExpiresAt, []byte("not-a-date")))

	s := New(mem)
	tok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.True(t, tok.ExpiresAt.IsZero())
	assert.True(t, s.IsExpired(ctx))
}

func TestWithSkew(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s := New(kvstore.NewMemory(), WithSkew(0), WithClock(func() time.Time { return now }))
	assert.Equal(t, time.Duration(0), s.Skew())

	require.NoError(t, s.Save(ctx, Token{AccessToken: "a", ExpiresAt: baseTime.Add(time.Minute)}))
	assert.False(t, s.IsExpired(ctx))
}
