package realtime

import (
	"sync"
	"time"
)

// RateLimiter bounds how many events a single connection may emit inside
// a sliding window. Admission timestamps live in a fixed ring sized to
// the limit, so a decision is O(1) and allocation stops at construction.
type RateLimiter struct {
	mu sync.Mutex

	stamps []time.Time
	oldest int // ring index of the oldest admitted event
	filled int

	max    int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter, substituting the package
// defaults for non-positive inputs.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		stamps: make([]time.Time, max),
		max:    max,
		window: window,
	}
}

// Allow reports whether an event at "now" is admitted, recording it when
// it is. Rejected events are not recorded, so a flooding client cannot
// push its own window forward.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled < r.max {
		r.stamps[(r.oldest+r.filled)%r.max] = now
		r.filled++
		return true
	}

	// Ring full: the slot at oldest holds the max-th most recent event.
	// Admit only once it has aged out of the window.
	if now.Sub(r.stamps[r.oldest]) < r.window {
		return false
	}
	r.stamps[r.oldest] = now
	r.oldest = (r.oldest + 1) % r.max
	return true
}
