package httpclient

import (
	"context"

	"github.com/ayska/apiclient/logger"
	"github.com/ayska/apiclient/tokenstore"
)

// ErrorInterceptor is the terminal error stage: it classifies, invalidates the
// session on authentication failures and rejects with the *APIError.
type ErrorInterceptor struct {
	store          *tokenstore.Store
	onUnauthorized func()
	onError        func(*APIError)
	log            logger.Logger
}

// NewErrorInterceptor creates the error stage. onUnauthorized and onError may be nil.
func NewErrorInterceptor(store *tokenstore.Store, onUnauthorized func(), onError func(*APIError), log logger.Logger) *ErrorInterceptor {
	if log == nil {
		log = logger.Nop()
	}
	return &ErrorInterceptor{store: store, onUnauthorized: onUnauthorized, onError: onError, log: log}
}

// Interceptor returns the pipeline hooks.
func (e *ErrorInterceptor) Interceptor() Interceptor {
	return Interceptor{Name: "error", OnError: e.handle}
}

func (e *ErrorInterceptor) handle(ctx context.Context, err error) Outcome {
	apiErr := Classify(err)

	if apiErr.Kind == KindAuth {
		e.handleUnauthorized(ctx)
	}
	if e.onError != nil {
		e.onError(apiErr)
	}

	e.log.Debug().
		Int("code", apiErr.Code).
		Str("kind", string(apiErr.Kind)).
		Str("title", apiErr.Title).
		Msg("Request failed")
	return Reject(apiErr)
}

func (e *ErrorInterceptor) handleUnauthorized(ctx context.Context) {
	if e.store != nil {
		if err := e.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
			e.log.Error().Err(err).Msg("Failed to clear auth state after 401")
		}
	}
	e.log.Info().Msg("Session invalidated by 401 response")
	if e.onUnauthorized != nil {
		e.onUnauthorized()
	}
}
