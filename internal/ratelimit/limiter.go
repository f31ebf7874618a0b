// Package ratelimit spaces out calls to a single external dependency.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants at most one call per interval. Burst is fixed at 1, so two
// consecutive grants are always at least 1/rate apart. A nil *Limiter never
// waits.
type Limiter struct {
	lim *rate.Limiter
}

// New returns a limiter allowing perSecond calls per second. perSecond <= 0
// yields an unlimited limiter.
func New(perSecond float64) *Limiter {
	if perSecond <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Every returns a limiter granting one call per interval.
func Every(interval time.Duration) *Limiter {
	if interval <= 0 {
		return New(0)
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// WaitForNextSlot blocks the caller until the next slot is available or ctx
// is done.
func (l *Limiter) WaitForNextSlot(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	return l.lim.Wait(ctx)
}
