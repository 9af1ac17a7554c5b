package httpclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayska/apiclient/logger"
	"github.com/ayska/apiclient/tokenstore"
)

func TestErrorInterceptorUnauthorized(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantKind      Kind
		wantCleared   bool
		wantCallbacks int
	}{
		{name: "expired session", body: `{"detail":"Invalid token"}`, wantKind: KindAuth, wantCleared: true, wantCallbacks: 1},
		{name: "role denial", body: `{"detail":"Admin access required"}`, wantKind: KindPermissionDenied, wantCleared: false, wantCallbacks: 0},
		{name: "expired session message", body: `{"message":"Invalid token"}`, wantKind: KindAuth, wantCleared: true, wantCallbacks: 1},
		{name: "role denial message", body: `{"message":"Admin access required"}`, wantKind: KindPermissionDenied, wantCleared: false, wantCallbacks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTokenStore(t, freshToken())
			unauthorized := 0
			var reported []*APIError
			errs := NewErrorInterceptor(store,
				func() { unauthorized++ },
				func(e *APIError) { reported = append(reported, e) },
				logger.Nop())
			tr := newScripted(statusStep(http.StatusUnauthorized, tt.body))
			c := newTestBuilder(tr, &recordingSleeper{}).
				WithInterceptor(NewAuthInterceptor(store, logger.Nop()).Interceptor()).
				WithInterceptor(newRetry(RetryConfig{}).Interceptor()).
				WithInterceptor(errs.Interceptor()).
				Build()

			_, err := c.Get(context.Background(), testPath)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
			assert.Equal(t, 1, tr.Calls())
			assert.Equal(t, tt.wantCallbacks, unauthorized)
			require.Len(t, reported, 1)
			assert.Same(t, apiErr, reported[0])

			_, tokErr := store.AccessToken(context.Background())
			if tt.wantCleared {
				assert.ErrorIs(t, tokErr, tokenstore.ErrNoToken)
			} else {
				assert.NoError(t, tokErr)
			}
		})
	}
}

func TestErrorInterceptorRejectsClassified(t *testing.T) {
	ic := NewErrorInterceptor(nil, nil, nil, nil).Interceptor()

	out := ic.OnError(context.Background(), &Failure{Code: CodeConnRefused})

	assert.True(t, out.IsReject())
	var apiErr *APIError
	require.ErrorAs(t, out.Err(), &apiErr)
	assert.Equal(t, KindServerDown, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Code)
}
