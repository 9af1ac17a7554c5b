// Package tokenstore holds the authentication token state shared by every request:
// an in-memory snapshot guarded by a RWMutex and written through to a kvstore.Store.
package tokenstore

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// Persisted key names, relative to the store prefix.
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "token_expires_at"
	KeyUserData     = "user_data"
)

const (
	// DefaultPrefix scopes every persisted key.
	DefaultPrefix = "@ayska_"
	// DefaultSkew treats a token as expired this long before its real expiry.
	DefaultSkew = 5 * time.Minute
)

var (
	// ErrNoToken is returned when no access token is stored.
	ErrNoToken = errors.New("tokenstore: no access token")
	// ErrInvalidTokenResponse is returned when a token endpoint body carries no access token.
	ErrInvalidTokenResponse = errors.New("tokenstore: response has no access token")
)

// Token is the authentication state. A zero ExpiresAt means the expiry is unknown.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero reports whether no access token is present.
func (t Token) IsZero() bool {
	return t.AccessToken == ""
}

// ExpiredAt reports whether the token must be treated as expired at now.
// A token with unknown expiry is expired.
func (t Token) ExpiredAt(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-skew))
}

// ParseTokenResponse extracts a Token from a login or refresh response body.
// Both snake_case and camelCase field names are accepted, as is a top-level
// "token" field. When expires_in is absent the JWT exp claim is used.
func ParseTokenResponse(body []byte, now time.Time) (Token, error) {
	res := gjson.ParseBytes(body)
	if data := res.Get("data"); data.IsObject() && !res.Get("access_token").Exists() {
		res = data
	}

	tok := Token{
		AccessToken:  firstString(res, "access_token", "accessToken", "token"),
		RefreshToken: firstString(res, "refresh_token", "refreshToken"),
	}
	if tok.AccessToken == "" {
		return Token{}, ErrInvalidTokenResponse
	}

	if secs := firstNumber(res, "expires_in", "expiresIn"); secs > 0 {
		tok.ExpiresAt = now.Add(time.Duration(secs * float64(time.Second)))
	} else if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
		tok.ExpiresAt = exp
	}
	return tok, nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func firstNumber(res gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
