// Package ratelimit bounds claim call frequency per caller identity with a
// fixed-window counter. The limiter damps abuse; it is not a hard quota, so a
// process-local window is acceptable and the redis variant exists only for
// deployments that want the window shared across instances.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/clock"
)

type Result struct {
	Allowed bool
	// RetryAfter is the remaining time to window reset in whole seconds,
	// rounded up. It is populated on allow and deny alike.
	RetryAfter int
}

type Limiter interface {
	Check(identity string, limit int, window time.Duration) (Result, error)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter keeps one counting window per identity in process
// memory. State is lost on restart and not synchronized across instances.
type FixedWindowLimiter struct {
	mu             sync.Mutex
	buckets        map[string]*bucket
	clock          clock.PassiveClock
	sweepThreshold int
}

func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		buckets:        map[string]*bucket{},
		clock:          clock.RealClock{},
		sweepThreshold: 1024,
	}
}

func (l *FixedWindowLimiter) Check(identity string, limit int, window time.Duration) (Result, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Expired buckets are otherwise only overwritten on their next request,
	// so many distinct one-off identities would grow the map without bound.
	if len(l.buckets) > l.sweepThreshold {
		l.sweep(now)
	}

	b, ok := l.buckets[identity]
	if !ok || !now.Before(b.resetAt) {
		l.buckets[identity] = &bucket{count: 1, resetAt: now.Add(window)}
		return Result{Allowed: true, RetryAfter: retryAfter(window)}, nil
	}

	remaining := b.resetAt.Sub(now)
	if b.count < limit {
		b.count++
		return Result{Allowed: true, RetryAfter: retryAfter(remaining)}, nil
	}
	return Result{Allowed: false, RetryAfter: retryAfter(remaining)}, nil
}

func (l *FixedWindowLimiter) sweep(now time.Time) {
	for identity, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, identity)
		}
	}
}

func retryAfter(remaining time.Duration) int {
	seconds := int(math.Ceil(remaining.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
