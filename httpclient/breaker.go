package httpclient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ayska/apiclient/logger"
)

// Breaker defaults.
const (
	DefaultBreakerMaxFailures      = 5
	DefaultBreakerOpenTimeout      = 30 * time.Second
	DefaultBreakerHalfOpenRequests = 1
)

var errServerStatus = errors.New("server error status")

// BreakerConfig configures BreakerTransport. Zero fields take the defaults.
type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failed attempts that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// BreakerTransport stops sending attempts to a backend that keeps failing.
// Transport errors and 5xx responses count as failures. While the circuit is
// open, Send fails fast with gobreaker.ErrOpenState, which surfaces as
// CodeCircuitOpen and classifies as server down.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker
}

var _ Transport = (*BreakerTransport)(nil)

// NewBreakerTransport wraps next with a circuit breaker.
func NewBreakerTransport(next Transport, cfg BreakerConfig, log logger.Logger) *BreakerTransport {
	if cfg.Name == "" {
		cfg.Name = "apiclient"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerMaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerOpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = DefaultBreakerHalfOpenRequests
	}
	if log == nil {
		log = logger.Nop()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerTransport{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Send forwards to the wrapped transport unless the circuit is open.
func (b *BreakerTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	_, err := b.cb.Execute(func() (any, error) {
		r, err := b.next.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state name: closed, half-open or open.
func (b *BreakerTransport) State() string {
	return b.cb.State().String()
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
