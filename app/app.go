// Package app wires the API client from configuration: persistent token
// storage, the interceptor pipeline, the refresher and telemetry.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/ayska/apiclient/config"
	"github.com/ayska/apiclient/httpclient"
	"github.com/ayska/apiclient/kvstore"
	kvredis "github.com/ayska/apiclient/kvstore/redis"
	kvsqlite "github.com/ayska/apiclient/kvstore/sqlite"
	"github.com/ayska/apiclient/logger"
	"github.com/ayska/apiclient/observability"
	"github.com/ayska/apiclient/tokenstore"
)

// App owns every long-lived component of the API client.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	kv      kvstore.Store
	tokens  *tokenstore.Store
	client  httpclient.Client
	// refreshClient carries token refresh calls. It has no auth or error
	// stage so a failed refresh never reaches the caller's callbacks.
	refreshClient httpclient.Client
	retry   *httpclient.RetryInterceptor
	auth    *httpclient.AuthInterceptor
	breaker *httpclient.BreakerTransport
	obs     observability.Provider
}

// NewFromEnv loads configuration with opts.ConfigLoader, config.Load by default,
// and builds the App.
func NewFromEnv(ctx context.Context, opts Options) (*App, error) {
	load := opts.ConfigLoader
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts)
}

// New builds the App. Interceptors are registered as request ID, throttle,
// logging, auth, retry and error, so retries re-run auth and the error stage
// sees only the final failure.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}
	log = log.WithFields(map[string]any{"app": cfg.App.Name, "env": cfg.App.Env})

	a := &App{cfg: cfg, logger: log}

	obs, err := observability.NewProvider(ctx, observability.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Exporter:       cfg.Observability.Exporter,
		Endpoint:       cfg.Observability.Endpoint,
		Protocol:       cfg.Observability.Protocol,
		Insecure:       cfg.Observability.Insecure,
		Headers:        cfg.Observability.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.obs = obs

	kv := opts.KV
	if kv == nil {
		if kv, err = openKV(ctx, &cfg.TokenStore); err != nil {
			_ = observability.Drain(obs, 0)
			return nil, err
		}
	}
	a.kv = kv
	a.tokens = tokenstore.New(kvstore.Scoped(kv, cfg.TokenStore.Prefix),
		tokenstore.WithSkew(cfg.Auth.Skew),
		tokenstore.WithLogger(log),
	)

	transport := a.buildTransport(opts)
	a.client = a.buildClient(transport, opts)
	a.refreshClient = a.buildClient(transport, opts)
	a.registerInterceptors(opts)

	log.Info().
		Str("base_url", cfg.Client.BaseURL).
		Str("tokenstore", cfg.TokenStore.Type).
		Bool("breaker", cfg.Breaker.Enabled).
		Bool("throttle", cfg.Throttle.Enabled).
		Msg("API client ready")
	return a, nil
}

func openKV(ctx context.Context, cfg *config.TokenStoreConfig) (kvstore.Store, error) {
	switch cfg.Type {
	case config.StoreRedis:
		client, err := kvredis.NewClient(&kvredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		return client, nil
	case config.StoreSQLite:
		store, err := kvsqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		return store, nil
	default:
		return kvstore.NewMemory(), nil
	}
}

func (a *App) buildTransport(opts Options) httpclient.Transport {
	cfg := a.cfg
	transport := opts.Transport
	if transport == nil {
		transport = httpclient.NewHTTPTransport(cfg.Client.Timeout, nil)
	}
	if cfg.Breaker.Enabled {
		a.breaker = httpclient.NewBreakerTransport(transport, httpclient.BreakerConfig{
			Name:        cfg.App.Name,
			MaxFailures: cfg.Breaker.Failures,
			OpenTimeout: cfg.Breaker.Timeout,
		}, a.logger)
		transport = a.breaker
	}
	return transport
}

func (a *App) buildClient(transport httpclient.Transport, opts Options) httpclient.Client {
	cfg := a.cfg
	b := httpclient.NewBuilder(a.logger).
		WithBaseURL(cfg.Client.BaseURL).
		WithTimeout(cfg.Client.Timeout).
		WithMaxAttempts(cfg.Client.MaxAttempts).
		WithLogPayloads(cfg.Client.LogPayloads).
		WithTransport(transport)
	if opts.Sleeper != nil {
		b = b.WithSleeper(opts.Sleeper)
	}
	return b.Build()
}

func (a *App) registerInterceptors(opts Options) {
	cfg := a.cfg
	maxRetries := cfg.Retry.Max
	if maxRetries == 0 {
		maxRetries = -1
	}
	a.retry = httpclient.NewRetryInterceptor(httpclient.RetryConfig{
		MaxRetries:           maxRetries,
		BaseDelay:            cfg.Retry.BaseDelay,
		MaxDelay:             cfg.Retry.MaxDelay,
		RetryableStatusCodes: cfg.Retry.StatusCodes,
		WeakNetworkThreshold: cfg.Network.WeakThreshold,
	}, a.logger)

	authOpts := []httpclient.AuthOption{httpclient.WithRefreshTimeout(cfg.Auth.RefreshTimeout)}
	if r := a.refresher(opts); r != nil {
		authOpts = append(authOpts, httpclient.WithRefresher(r))
	}
	a.auth = httpclient.NewAuthInterceptor(a.tokens, a.logger, authOpts...)

	a.client.Register(httpclient.NewRequestIDInterceptor())
	if cfg.Throttle.Enabled {
		a.client.Register(httpclient.NewThrottleInterceptor(
			httpclient.NewRateLimiter(cfg.Throttle.PerMinute, cfg.Throttle.Burst)))
	}
	a.client.Register(httpclient.NewLoggingInterceptor(a.logger, cfg.Client.LogPayloads))
	a.client.Register(a.auth.Interceptor())
	a.client.Register(a.retry.Interceptor())
	a.client.Register(httpclient.NewErrorInterceptor(a.tokens, opts.OnUnauthorized, opts.OnError, a.logger).Interceptor())

	a.refreshClient.Register(httpclient.NewRequestIDInterceptor())
	a.refreshClient.Register(httpclient.NewLoggingInterceptor(a.logger, cfg.Client.LogPayloads))
}

func (a *App) refresher(opts Options) httpclient.Refresher {
	auth := a.cfg.Auth
	switch {
	case opts.Refresher != nil:
		return opts.Refresher
	case auth.OAuth2.TokenURL != "":
		return httpclient.OAuth2Refresher{Config: &oauth2.Config{
			ClientID:     auth.OAuth2.ClientID,
			ClientSecret: auth.OAuth2.ClientSecret,
			Scopes:       auth.OAuth2.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: auth.OAuth2.TokenURL},
		}}
	case auth.RefreshPath != "":
		return &endpointRefresher{client: a.refreshClient, path: auth.RefreshPath}
	default:
		return nil
	}
}

// Client returns the configured pipeline.
func (a *App) Client() httpclient.Client { return a.client }

// Tokens returns the token store.
func (a *App) Tokens() *tokenstore.Store { return a.tokens }

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// IsWeakNetwork reports whether recent requests keep timing out.
func (a *App) IsWeakNetwork() bool { return a.retry.IsWeakNetwork() }

// BreakerState returns the circuit state, or "disabled".
func (a *App) BreakerState() string {
	if a.breaker == nil {
		return "disabled"
	}
	return a.breaker.State()
}

// Close releases the token store backend and flushes telemetry.
func (a *App) Close() error {
	var errs []error
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && !errors.Is(err, kvstore.ErrClosed) {
			errs = append(errs, fmt.Errorf("close token store: %w", err))
		}
	}
	if err := observability.Drain(a.obs, 0); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
