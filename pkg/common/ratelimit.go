package common

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by concurrent callers. Control
// commands go through one so a burst of clicks in the UI cannot flood the
// backend with cancel/retry requests.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter allowing rps events per second with
// the given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until an event is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error { return rl.limiter.Wait(ctx) }

// Allow reports whether an event may happen now without waiting.
func (rl *RateLimiter) Allow() bool { return rl.limiter.Allow() }
