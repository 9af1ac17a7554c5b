package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ayska/apiclient/httpclient"
	"github.com/ayska/apiclient/tokenstore"
)

// endpointRefresher posts the refresh token to the API's own refresh endpoint.
type endpointRefresher struct {
	client httpclient.Client
	path   string
}

func (r *endpointRefresher) Refresh(ctx context.Context, current tokenstore.Token) (tokenstore.Token, error) {
	if current.RefreshToken == "" {
		return tokenstore.Token{}, httpclient.ErrNoRefreshToken
	}
	resp, err := r.client.Post(ctx, r.path,
		map[string]string{"refresh_token": current.RefreshToken},
		httpclient.WithoutAuth(),
	)
	if err != nil {
		return tokenstore.Token{}, fmt.Errorf("refresh request: %w", err)
	}
	return tokenstore.ParseTokenResponse(resp.Body, time.Now())
}

// Login posts credentials to path without auth, stores the returned tokens
// and the "user" object when present, and returns the raw user data.
func (a *App) Login(ctx context.Context, path string, credentials any) (json.RawMessage, error) {
	resp, err := a.client.Post(ctx, path, credentials, httpclient.WithoutAuth())
	if err != nil {
		return nil, err
	}
	tok, err := tokenstore.ParseTokenResponse(resp.Body, time.Now())
	if err != nil {
		return nil, err
	}
	if err := a.tokens.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	user := gjson.GetBytes(resp.Body, "user")
	if !user.Exists() {
		user = gjson.GetBytes(resp.Body, "data.user")
	}
	if !user.IsObject() {
		a.logger.Info().Msg("Logged in")
		return nil, nil
	}
	raw := json.RawMessage(user.Raw)
	if err := a.tokens.SaveUserData(ctx, raw); err != nil {
		return nil, fmt.Errorf("save user data: %w", err)
	}
	a.logger.Info().Str("user_id", gjson.Get(user.Raw, "id").String()).Msg("Logged in")
	return raw, nil
}

// Logout clears all stored auth state.
func (a *App) Logout(ctx context.Context) error {
	if err := a.tokens.ClearAll(ctx); err != nil {
		return err
	}
	a.logger.Info().Msg("Logged out")
	return nil
}

// CurrentUser returns the user data stored at login.
func (a *App) CurrentUser(ctx context.Context) (json.RawMessage, error) {
	return a.tokens.UserData(ctx)
}
