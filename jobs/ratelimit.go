package jobs

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window submission counter keyed by caller
// identity. It is an injected component rather than package state so
// tests can run concurrent submissions without shared globals.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one submission attempt for the caller and reports
// whether it fits inside the window.
func (l *RateLimiter) Allow(caller string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[caller][:0]
	for _, t := range l.hits[caller] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[caller] = recent
		return false
	}
	l.hits[caller] = append(recent, now)
	return true
}
