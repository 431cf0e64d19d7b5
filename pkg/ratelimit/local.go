// Package ratelimit throttles how fast a worker may append events,
// independent of the durability guarantees the event log itself provides.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter decides whether a caller may proceed right now.
type Limiter interface {
	Allow(key string) bool
}

// LocalLimiter keeps one token bucket per key in process memory. It is
// appropriate for a single runtime instance; multi-instance deployments
// should use a RedisLimiter instead so buckets are shared.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

// NewLocalLimiter returns a LocalLimiter allowing eventsPerSecond sustained
// throughput per key, with burst headroom of burst events.
func NewLocalLimiter(eventsPerSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(eventsPerSecond),
		burst:   burst,
	}
}

// Allow implements Limiter.
func (l *LocalLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
