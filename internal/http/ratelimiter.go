package httpapi

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit events within any trailing window.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// NewSlidingWindowLimiter constructs a limiter allowing up to limit events per window.
// A non-positive window or limit disables limiting.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{window: window, limit: limit, now: timeSource}
}

func (l *SlidingWindowLimiter) disabled() bool {
	return l == nil || l.limit <= 0 || l.window <= 0
}

// pruneLocked drops events that fell out of the window; callers hold the mutex.
func (l *SlidingWindowLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, ts := range l.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.events = kept
}

// Allow records an event and reports whether it fits the window.
func (l *SlidingWindowLimiter) Allow() bool {
	if l.disabled() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// RetryAfter reports how long until the oldest admitted event leaves the window.
func (l *SlidingWindowLimiter) RetryAfter() time.Duration {
	if l.disabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.events) < l.limit {
		return 0
	}
	return l.events[0].Add(l.window).Sub(now)
}
