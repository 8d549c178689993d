// Package throttle enforces minimum spacing between oracle calls.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks callers so that consecutive calls are separated by at
// least the configured interval. The first call never waits. It guarantees
// minimum spacing only, not a rolling-window cap; the orchestrator issues
// calls strictly sequentially so spacing is sufficient.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter with the given minimum interval between
// calls. An interval of zero or less disables throttling.
func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	// Burst of one: the initial token makes the first call free, after
	// which tokens refill once per interval.
	return &Limiter{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the minimum interval since the previous call has
// elapsed, or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
