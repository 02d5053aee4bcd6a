package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter reports whether key may proceed and, if not, how long until it may.
type rateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// windowLimiter is a fixed-window counter per key. Expired windows are swept at most once per window.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	windows   map[string]*trackWindow
	lastSweep time.Time
}

type trackWindow struct {
	count int
	reset time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*trackWindow),
	}
}

func (l *windowLimiter) Allow(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for k, w := range l.windows {
			if !now.Before(w.reset) {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		l.windows[key] = &trackWindow{count: 1, reset: now.Add(l.window)}
		return true, 0
	}
	if w.count >= l.limit {
		return false, w.reset.Sub(now)
	}
	w.count++
	return true, 0
}
