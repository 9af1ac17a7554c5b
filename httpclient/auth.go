package httpclient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ayska/apiclient/httpclient/internal/tracking"
	"github.com/ayska/apiclient/logger"
	"github.com/ayska/apiclient/tokenstore"
)

// DefaultRefreshTimeout bounds a token refresh call.
const DefaultRefreshTimeout = 10 * time.Second

const refreshKey = "refresh"

// ErrNoRefreshToken is returned by refreshers when no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token available")

// Refresher obtains a new token from the current one.
type Refresher interface {
	Refresh(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error)

// Refresh calls f(ctx, current).
func (f RefreshFunc) Refresh(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error) {
	return f(ctx, current)
}

// AuthInterceptor attaches the bearer token and, when a Refresher is set,
// refreshes expired tokens once for all concurrent callers.
type AuthInterceptor struct {
	store          *tokenstore.Store
	refresher      Refresher
	refreshTimeout time.Duration
	group          singleflight.Group
	log            logger.Logger
}

// AuthOption configures an AuthInterceptor.
type AuthOption func(*AuthInterceptor)

// WithRefresher enables refresh-on-expiry.
func WithRefresher(r Refresher) AuthOption {
	return func(a *AuthInterceptor) { a.refresher = r }
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) AuthOption {
	return func(a *AuthInterceptor) {
		if d > 0 {
			a.refreshTimeout = d
		}
	}
}

// NewAuthInterceptor creates an auth interceptor over store.
func NewAuthInterceptor(store *tokenstore.Store, log logger.Logger, opts ...AuthOption) *AuthInterceptor {
	if log == nil {
		log = logger.Nop()
	}
	a := &AuthInterceptor{store: store, refreshTimeout: DefaultRefreshTimeout, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Interceptor returns the pipeline hooks.
func (a *AuthInterceptor) Interceptor() Interceptor {
	return Interceptor{Name: "auth", OnRequest: a.onRequest}
}

func (a *AuthInterceptor) onRequest(ctx context.Context, req *Request) error {
	// a retry must not reuse a token that has since been refreshed or cleared
	req.Header.Del(HeaderAuthorization)
	if req.Meta.SkipAuth {
		return nil
	}

	tok, err := a.store.Token(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to read auth token, sending request without it")
		return nil
	}
	if tok.IsZero() {
		return nil
	}

	var access string
	if a.refresher != nil && a.store.IsExpired(ctx) {
		access, err = a.refresh(ctx)
		if err != nil {
			a.log.Warn().Err(err).Str("url", req.URL).Msg("Token refresh failed, sending request without credentials")
			return nil
		}
	} else if access, err = a.store.AccessToken(ctx); err != nil {
		// cleared concurrently
		return nil
	}
	req.Header.Set(HeaderAuthorization, "Bearer "+access)
	return nil
}

// Refresh forces a refresh through the shared flight and returns the new access token.
func (a *AuthInterceptor) Refresh(ctx context.Context) (string, error) {
	if a.refresher == nil {
		return "", errors.New("auth interceptor has no refresher")
	}
	return a.refresh(ctx)
}

func (a *AuthInterceptor) refresh(ctx context.Context) (string, error) {
	ch := a.group.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.refreshTimeout)
		defer cancel()

		// a flight that finished just before this one may already have refreshed
		if !a.store.IsExpired(rctx) {
			return a.store.AccessToken(rctx)
		}
		current, err := a.store.Token(rctx)
		if err != nil {
			return "", err
		}
		if current.IsZero() {
			return "", tokenstore.ErrNoToken
		}

		next, err := a.refresher.Refresh(rctx, current)
		if err == nil {
			err = a.store.Save(rctx, next)
		}
		tracking.RecordTokenRefresh(rctx, err == nil)
		if err != nil {
			if cerr := a.store.ClearAll(rctx); cerr != nil {
				a.log.Error().Err(cerr).Msg("Failed to clear auth state after refresh failure")
			}
			return "", err
		}

		a.log.Info().Msg("Access token refreshed")
		return a.store.AccessToken(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
