package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ayska/apiclient/httpclient/internal/tracking"
	"github.com/ayska/apiclient/logger"
)

// RetryState is the per-request retry state, reported in logs.
type RetryState string

const (
	RetryInitial  RetryState = "INITIAL"
	RetryWaiting  RetryState = "WAITING"
	RetryRetrying RetryState = "RETRYING"
	RetryDone     RetryState = "DONE"
	RetryFailed   RetryState = "FAILED"
)

// Retry defaults.
const (
	DefaultMaxRetries           = 3
	DefaultRetryBaseDelay       = 1 * time.Second
	DefaultRetryMaxDelay        = 4 * time.Second
	DefaultWeakNetworkThreshold = 3
)

// DefaultRetryableStatusCodes are retried in addition to every 5xx status.
var DefaultRetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}

// RetryConfig configures a RetryInterceptor. Zero fields take the defaults.
type RetryConfig struct {
	MaxRetries           int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	RetryableStatusCodes []int
	WeakNetworkThreshold int
}

// RetryInterceptor re-submits failed requests with exponential backoff and
// tracks consecutive timeouts across all requests it sees.
type RetryInterceptor struct {
	cfg      RetryConfig
	codes    map[int]bool
	timeouts atomic.Int64
	log      logger.Logger
	now      func() time.Time
}

// NewRetryInterceptor creates a retry interceptor. Register one per client.
func NewRetryInterceptor(cfg RetryConfig, log logger.Logger) *RetryInterceptor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryMaxDelay
	}
	if len(cfg.RetryableStatusCodes) == 0 {
		cfg.RetryableStatusCodes = DefaultRetryableStatusCodes
	}
	if cfg.WeakNetworkThreshold <= 0 {
		cfg.WeakNetworkThreshold = DefaultWeakNetworkThreshold
	}
	if log == nil {
		log = logger.Nop()
	}

	codes := make(map[int]bool, len(cfg.RetryableStatusCodes))
	for _, c := range cfg.RetryableStatusCodes {
		codes[c] = true
	}
	return &RetryInterceptor{cfg: cfg, codes: codes, log: log, now: time.Now}
}

// Interceptor returns the pipeline hooks.
func (r *RetryInterceptor) Interceptor() Interceptor {
	return Interceptor{
		Name:       "retry",
		OnResponse: r.onResponse,
		OnError:    r.onError,
	}
}

// IsWeakNetwork reports whether the timeout streak has reached the threshold.
func (r *RetryInterceptor) IsWeakNetwork() bool {
	return r.timeouts.Load() >= int64(r.cfg.WeakNetworkThreshold)
}

// ConsecutiveTimeouts returns the current timeout streak.
func (r *RetryInterceptor) ConsecutiveTimeouts() int {
	return int(r.timeouts.Load())
}

// ResetWeakNetwork clears the timeout streak.
func (r *RetryInterceptor) ResetWeakNetwork() {
	r.timeouts.Store(0)
}

// Backoff returns min(base*2^attempt, maxDelay).
func (r *RetryInterceptor) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return r.cfg.MaxDelay
	}
	d := r.cfg.BaseDelay * time.Duration(1<<attempt)
	if d > r.cfg.MaxDelay || d <= 0 {
		d = r.cfg.MaxDelay
	}
	return d
}

func (r *RetryInterceptor) onResponse(_ context.Context, req *Request, _ *Response) error {
	r.timeouts.Store(0)
	if req.Meta.IsRetry {
		r.log.Debug().
			Str("state", string(RetryDone)).
			Str("method", req.Method).
			Str("url", req.URL).
			Int("attempt", req.Meta.AttemptCount).
			Msg("Retried request succeeded")
	}
	return nil
}

func (r *RetryInterceptor) onError(ctx context.Context, err error) Outcome {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Next(err)
	}
	f, ok := AsFailure(err)
	if !ok || f.Request == nil {
		return Next(err)
	}
	req := f.Request

	r.trackTimeouts(ctx, f)

	status := f.StatusCode()
	retryable := f.Response == nil || status >= 500 || r.codes[status]
	maxRetries := r.cfg.MaxRetries
	if req.MaxRetries > 0 {
		maxRetries = req.MaxRetries
	}
	attempt := req.Meta.AttemptCount

	if !retryable || attempt >= maxRetries {
		state := RetryInitial
		if attempt > 0 {
			state = RetryFailed
		}
		r.log.Debug().
			Str("state", string(state)).
			Str("method", req.Method).
			Str("url", req.URL).
			Int("status", status).
			Int("attempt", attempt).
			Bool("retryable", retryable).
			Msg("Not retrying request")
		return Next(err)
	}

	delay := r.Backoff(attempt)
	reason := "transport"
	if f.Response != nil {
		reason = "status"
		if status == http.StatusTooManyRequests {
			if wait, ok := ParseRetryAfter(f.Response.Headers.Get(HeaderRetryAfter), r.now()); ok {
				delay = wait
			}
		}
	}

	req.Meta.AttemptCount++
	req.Meta.IsRetry = true
	tracking.RecordRetry(ctx, req.Method, reason)

	r.log.Info().
		Str("state", string(RetryWaiting)).
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", status).
		Str("code", f.Code).
		Int("attempt", req.Meta.AttemptCount).
		Int("max_retries", maxRetries).
		Dur("delay", delay).
		Msg("Retrying request")

	return Retry(delay)
}

func (r *RetryInterceptor) trackTimeouts(ctx context.Context, f *Failure) {
	if !f.IsTimeout() {
		r.timeouts.Store(0)
		return
	}
	n := r.timeouts.Add(1)
	if n >= int64(r.cfg.WeakNetworkThreshold) {
		f.WeakNetwork = true
		tracking.RecordWeakNetwork(ctx)
		r.log.Warn().
			Int64("consecutive_timeouts", n).
			Str("url", f.Request.URL).
			Msg("Weak network detected")
	}
}
