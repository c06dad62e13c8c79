// Package ratelimit implements a per-identifier fixed window rate limiter.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the default number of requests allowed per window.
	DefaultLimit = 60
	// DefaultWindow is the default window length.
	DefaultWindow = 60 * time.Second
	// DefaultIdentifier is used when Check is called with an empty identifier.
	DefaultIdentifier = "default"
)

// Verdict is the outcome of a single Check.
type Verdict struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per identifier in fixed, non-overlapping windows.
//
// Entries are created on first use and live as long as the Limiter. A
// Limiter is safe for concurrent use: the read-check-write sequence for an
// identifier runs under a single lock.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source, which is useful in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter allowing limit requests per window for each
// identifier.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDefault creates a Limiter with DefaultLimit and DefaultWindow.
func NewDefault(opts ...Option) *Limiter {
	return New(DefaultLimit, DefaultWindow, opts...)
}

// Limit returns the number of requests allowed per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Check records a request for identifier and reports whether it is allowed.
//
// A window that has elapsed is replaced by a fresh one, discarding its count.
// Once the limit is reached, further calls are rejected without being counted
// and report the same ResetTime until the window rolls over.
func (l *Limiter) Check(identifier string) Verdict {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 0, resetAt: now.Add(l.window)}
		l.entries[identifier] = e
	}

	if e.count >= l.limit {
		return Verdict{Allowed: false, Remaining: 0, ResetTime: e.resetAt}
	}

	e.count++
	return Verdict{
		Allowed:   true,
		Remaining: l.limit - e.count,
		ResetTime: e.resetAt,
	}
}

// Len returns the number of identifiers currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset forgets the window of identifier.
func (l *Limiter) Reset(identifier string) {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}
