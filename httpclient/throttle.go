package httpclient

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the client-side request budget.
const DefaultRequestsPerMinute = 60

// NewRateLimiter allows perMinute requests per minute with the given burst.
func NewRateLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// NewThrottleInterceptor delays every attempt, retries included, until the
// limiter admits it. A request whose context ends first fails with that error.
func NewThrottleInterceptor(limiter *rate.Limiter) Interceptor {
	return Interceptor{
		Name: "throttle",
		OnRequest: func(ctx context.Context, _ *Request) error {
			return limiter.Wait(ctx)
		},
	}
}
