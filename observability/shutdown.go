package observability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DrainTimeout bounds Drain when the caller passes no timeout.
const DrainTimeout = 5 * time.Second

// Drain exports whatever the last requests left buffered and then stops p.
// Both steps share one deadline. A nil p is a no-op.
func Drain(p Provider, timeout time.Duration) error {
	if p == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DrainTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	flushErr := p.ForceFlush(ctx)
	if err := errors.Join(flushErr, p.Shutdown(ctx)); err != nil {
		return fmt.Errorf("drain telemetry: %w", err)
	}
	return nil
}
