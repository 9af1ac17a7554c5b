package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayska/apiclient/kvstore"
	"github.com/ayska/apiclient/logger"
)

// Store is the process-wide token state. Reads are served from memory; writes
// go to the backing kvstore first and update the snapshot only on success.
type Store struct {
	mu     sync.RWMutex
	kv     kvstore.Store
	token  Token
	loaded bool

	skew time.Duration
	now  func() time.Time
	log  logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSkew overrides DefaultSkew.
func WithSkew(skew time.Duration) Option {
	return func(s *Store) {
		if skew >= 0 {
			s.skew = skew
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store over kv. kv is typically kvstore.Scoped(backend, DefaultPrefix).
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:   kv,
		skew: DefaultSkew,
		now:  time.Now,
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted state into memory. It is called lazily by the
// accessors and may be called eagerly at startup.
func (s *Store) Load(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return Token{}, err
	}
	return s.token, nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	var tok Token
	access, err := s.getString(ctx, KeyAccessToken)
	if err != nil {
		return err
	}
	tok.AccessToken = access

	if tok.RefreshToken, err = s.getString(ctx, KeyRefreshToken); err != nil {
		return err
	}

	rawExpiry, err := s.getString(ctx, KeyExpiresAt)
	if err != nil {
		return err
	}
	if rawExpiry != "" {
		exp, perr := time.Parse(time.RFC3339Nano, rawExpiry)
		if perr != nil {
			s.log.Warn().Str("key", KeyExpiresAt).Err(perr).Msg("Ignoring unparseable token expiry")
		} else {
			tok.ExpiresAt = exp
		}
	}

	s.token = tok
	s.loaded = true
	return nil
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return string(v), nil
}

// Token returns the current snapshot, loading it on first use.
func (s *Store) Token(ctx context.Context) (Token, error) {
	s.mu.RLock()
	if s.loaded {
		tok := s.token
		s.mu.RUnlock()
		return tok, nil
	}
	s.mu.RUnlock()
	return s.Load(ctx)
}

// AccessToken returns ErrNoToken when nothing is stored.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}

// RefreshToken returns the stored refresh token, or "" if none.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.RefreshToken, nil
}

// IsExpired reports whether the stored token is within the skew window of its
// expiry, has no known expiry, or cannot be read.
func (s *Store) IsExpired(ctx context.Context) bool {
	tok, err := s.Token(ctx)
	if err != nil {
		return true
	}
	return tok.ExpiredAt(s.now(), s.skew)
}

// Skew returns the configured expiry skew.
func (s *Store) Skew() time.Duration {
	return s.skew
}

// Save persists tok. An empty RefreshToken keeps the stored one. A zero
// ExpiresAt is derived from the access token's exp claim when possible.
// ExpiresAt never moves backwards while state exists.
func (s *Store) Save(ctx context.Context, tok Token) error {
	if tok.AccessToken == "" {
		return ErrNoToken
	}
	if tok.ExpiresAt.IsZero() {
		if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
			tok.ExpiresAt = exp
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = s.token.RefreshToken
	}
	if !s.token.IsZero() && tok.ExpiresAt.Before(s.token.ExpiresAt) {
		tok.ExpiresAt = s.token.ExpiresAt
	}

	if err := s.kv.Set(ctx, KeyAccessToken, []byte(tok.AccessToken)); err != nil {
		return fmt.Errorf("save %s: %w", KeyAccessToken, err)
	}
	if tok.RefreshToken != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, []byte(tok.RefreshToken)); err != nil {
			return fmt.Errorf("save %s: %w", KeyRefreshToken, err)
		}
	}
	if !tok.ExpiresAt.IsZero() {
		raw := tok.ExpiresAt.UTC().Format(time.RFC3339Nano)
		if err := s.kv.Set(ctx, KeyExpiresAt, []byte(raw)); err != nil {
			return fmt.Errorf("save %s: %w", KeyExpiresAt, err)
		}
	}

	s.token = tok
	return nil
}

// Clear removes the token keys and keeps user data.
func (s *Store) Clear(ctx context.Context) error {
	return s.clear(ctx, KeyAccessToken, KeyRefreshToken, KeyExpiresAt)
}

// ClearAll removes every auth key including user data. The in-memory snapshot
// is reset even when the backing store fails.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.clear(ctx, KeyAccessToken, KeyRefreshToken, KeyExpiresAt, KeyUserData)
}

func (s *Store) clear(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = Token{}
	s.loaded = true
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

// SaveUserData stores the raw user profile returned at login.
func (s *Store) SaveUserData(ctx context.Context, data []byte) error {
	if err := s.kv.Set(ctx, KeyUserData, data); err != nil {
		return fmt.Errorf("save %s: %w", KeyUserData, err)
	}
	return nil
}

// UserData returns the stored user profile, or kvstore.ErrNotFound.
func (s *Store) UserData(ctx context.Context) ([]byte, error) {
	return s.kv.Get(ctx, KeyUserData)
}
