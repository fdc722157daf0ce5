package ratelimit

import (
	"sync"
	"time"
)

// quotaEpsilon bounds the throttle divisor away from zero. With the quota
// exhausted (or reported negative) the sleep tops out at 2s.
const quotaEpsilon = 0.5

// Quota mirrors the server-side request quota for one set of credentials.
// It is refreshed from the rate-limit headers of every REST response and
// drives the self-throttle sleep applied before control returns to the
// caller.
type Quota struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	observed  bool
}

// NewQuota returns an empty tracker. Until the first observation,
// ThrottleDelay reports the minimum sleep for a healthy quota.
func NewQuota() *Quota {
	return &Quota{}
}

// Observe records the remaining-quota count and its reset boundary as
// reported by the server.
func (q *Quota) Observe(remaining int, reset time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remaining = remaining
	q.reset = reset
	q.observed = true
}

// Remaining returns the last observed remaining-quota count. The second
// return value is false before any observation.
func (q *Quota) Remaining() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining, q.observed
}

// ResetAt returns the last observed quota reset boundary.
func (q *Quota) ResetAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reset
}

// ThrottleDelay returns the sleep to apply after a request, derived from the
// last observed remaining quota. Without an observation it assumes a healthy
// quota and returns the minimum.
func (q *Quota) ThrottleDelay() time.Duration {
	q.mu.Lock()
	remaining, observed := q.remaining, q.observed
	q.mu.Unlock()
	if !observed {
		return ThrottleDelay(1 << 20)
	}
	return ThrottleDelay(remaining)
}

// ThrottleDelay computes 1/max(remaining, epsilon) seconds. The delay is
// always positive and strictly decreasing in the remaining quota, reaching
// 2s when the quota is exhausted. The division is kept at nanosecond
// granularity; rounding up to whole seconds would flatten the curve to a
// constant 1s for any positive quota.
func ThrottleDelay(remaining int) time.Duration {
	divisor := float64(remaining)
	if divisor < quotaEpsilon {
		divisor = quotaEpsilon
	}
	return time.Duration(float64(time.Second) / divisor)
}
