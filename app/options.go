package app

import (
	"github.com/ayska/apiclient/config"
	"github.com/ayska/apiclient/httpclient"
	"github.com/ayska/apiclient/kvstore"
	"github.com/ayska/apiclient/logger"
)

// Options contains optional dependencies for creating an App instance
type Options struct {
	Logger logger.Logger
	// Transport replaces the net/http transport. The circuit breaker, when
	// enabled, still wraps it.
	Transport httpclient.Transport
	// KV replaces the backend selected by tokenstore.type.
	KV kvstore.Store
	// Refresher replaces the configured OAuth2 or endpoint refresher.
	Refresher httpclient.Refresher
	// OnUnauthorized runs after a 401 has cleared the session.
	OnUnauthorized func()
	// OnError receives every classified failure.
	OnError func(*httpclient.APIError)
	Sleeper httpclient.Sleeper
	// ConfigLoader is used by NewFromEnv.
	ConfigLoader func() (*config.Config, error)
}
