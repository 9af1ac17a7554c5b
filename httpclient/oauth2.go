package httpclient

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ayska/apiclient/tokenstore"
)

// OAuth2Refresher refreshes tokens against an OAuth2 token endpoint using the
// refresh_token grant.
type OAuth2Refresher struct {
	Config *oauth2.Config
	// HTTPClient is used for the token call when set.
	HTTPClient *http.Client
}

var _ Refresher = OAuth2Refresher{}

// Refresh exchanges current.RefreshToken for a new token.
func (o OAuth2Refresher) Refresh(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error) {
	if current.RefreshToken == "" {
		return tokenstore.Token{}, ErrNoRefreshToken
	}
	if o.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.HTTPClient)
	}

	src := o.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return tokenstore.Token{}, err
	}
	return tokenstore.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}
