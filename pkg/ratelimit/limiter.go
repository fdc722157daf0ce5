// Package ratelimit controls the pace of requests sent to the exchange.
//
// Two mechanisms cooperate here. The token-bucket limiter (backed by Uber's
// rate limiter) enforces a client-side floor on request frequency before a
// request is sent. The Quota tracker mirrors the server's own remaining-quota
// accounting, refreshed from every REST response, and derives the
// self-throttle sleep applied after a request: the closer the account gets to
// the server's limit, the longer the client pauses, so it degrades gracefully
// instead of being hard-rejected.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a rate limit expressed as an operation count per time interval.
type Rate struct {
	// Limit is the maximum number of operations allowed within Interval.
	Limit int

	// Interval is the window over which Limit applies.
	Interval time.Duration
}

// RateLimiter paces operations. Wait blocks until the next operation is
// permitted or the context is cancelled.
type RateLimiter interface {
	Wait(ctx context.Context) error

	// SetLimit replaces the active rate at runtime.
	SetLimit(rate Rate) error
}

// uberLimiter implements RateLimiter on top of go.uber.org/ratelimit's
// token bucket.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a RateLimiter allowing rate.Limit operations
// per rate.Interval, smoothed into an even per-second pace.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

// Wait implements RateLimiter.
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit implements RateLimiter.
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	l.limiter = ratelimit.New(int(rps))
	l.rate = rate
	return nil
}
