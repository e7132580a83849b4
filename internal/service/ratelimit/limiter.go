package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a minimum interval between operations per key. It is
// used to keep zone scans at most once per interval per symbol/timeframe,
// independent of caller frequency.
type Limiter struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func New() *Limiter {
	return &Limiter{last: make(map[string]time.Time), now: time.Now}
}

// Allow returns true when at least interval has elapsed since the last
// allowed call for key, consuming the slot if so.
func (l *Limiter) Allow(key string, interval time.Duration) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.last[key]; ok && now.Sub(t) < interval {
		return false
	}
	l.last[key] = now
	return true
}

// Reset forgets the last-allowed time for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.last, key)
	l.mu.Unlock()
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }
