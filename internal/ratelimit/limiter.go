// Package ratelimit provides per-scope token-bucket admission control for
// outbound fetches, honoring server-issued flood-wait hints.
//
// Every scope (one API credential, or one conversation when configured)
// gets an independent bucket; one scope's flood wait never blocks another.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for tests.
type Clock func() time.Time

// Limiter is a sharded map of scope key to token bucket. Mutation of one
// scope never serializes unrelated scopes behind a process-wide lock.
type Limiter struct {
	capacity int
	refill   rate.Limit
	now      Clock

	mu     sync.RWMutex
	scopes map[string]*scope
}

type scope struct {
	mu            sync.Mutex
	bucket        *rate.Limiter
	nextAllowedAt time.Time
}

// Option configures the limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.now = c }
}

// New creates a limiter whose scopes hold capacity tokens and refill at
// refillPerSec tokens per second.
func New(capacity int, refillPerSec float64, opts ...Option) *Limiter {
	l := &Limiter{
		capacity: capacity,
		refill:   rate.Limit(refillPerSec),
		now:      time.Now,
		scopes:   make(map[string]*scope),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes one token from the scope's bucket. It either succeeds
// immediately (ok true) or reports the exact wait until a token or the
// flood-wait window frees up (ok false). It never blocks; callers decide
// whether to sleep and retry or skip.
func (l *Limiter) Acquire(scopeKey string) (ok bool, wait time.Duration) {
	s := l.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	if now.Before(s.nextAllowedAt) {
		return false, s.nextAllowedAt.Sub(now)
	}

	res := s.bucket.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		// Not admissible yet: give the token back and report the wait.
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// FloodWait applies a server-issued wait hint to one scope. The hint
// overrides any local estimate: the window starts now regardless of token
// state, and the bucket is drained so the scope restarts cold.
func (l *Limiter) FloodWait(scopeKey string, d time.Duration) {
	s := l.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	s.nextAllowedAt = now.Add(d)
	// Drain whatever is currently available.
	if tokens := int(s.bucket.TokensAt(now)); tokens > 0 {
		s.bucket.ReserveN(now, tokens)
	}
}

// NextAllowedAt returns the end of the scope's flood-wait window, zero if
// none is active.
func (l *Limiter) NextAllowedAt(scopeKey string) time.Time {
	s := l.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAllowedAt
}

func (l *Limiter) scope(key string) *scope {
	l.mu.RLock()
	s, exists := l.scopes[key]
	l.mu.RUnlock()
	if exists {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, exists = l.scopes[key]; exists {
		return s
	}
	s = &scope{bucket: rate.NewLimiter(l.refill, l.capacity)}
	l.scopes[key] = s
	return s
}
