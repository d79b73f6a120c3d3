package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing requests to one node.
type Limiter struct {
	limiter *rate.Limiter
	rps     int
	burst   int
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Available int
	Burst     int
	Interval  time.Duration
}

// New returns a limiter allowing rps requests per second with the given
// burst. Non-positive values fall back to 1.
func New(rps, burst int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
	}
}

// Wait blocks until a token is available or ctx is done. A nil limiter never
// blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

func (l *Limiter) Stats() Stats {
	available := int(l.limiter.Tokens())
	if available < 0 {
		available = 0
	}
	return Stats{
		Available: available,
		Burst:     l.burst,
		Interval:  time.Second / time.Duration(l.rps),
	}
}
