package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// SendLimiter caps outbound messages per second across all workers.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type SendLimiter struct {
	limiter *rate.Limiter
}

// New creates a SendLimiter with ratePerSec tokens per second.
// A non-positive rate disables limiting.
func New(ratePerSec int) *SendLimiter {
	if ratePerSec <= 0 {
		return &SendLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &SendLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until the limiter grants a token.
// Called by each worker immediately before handing a message to the transport.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *SendLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
