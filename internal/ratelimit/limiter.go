// Package ratelimit implements a fixed-window request limiter keyed by
// (client, endpoint class). Windows are counted per process; the limiter is
// defense-in-depth in front of the upstream's own limits, not the system of
// record for quota enforcement.
package ratelimit

import (
	"sync"
	"time"
)

// Class is a logical endpoint category with its own window and ceiling.
type Class string

const (
	ClassUpload  Class = "upload"
	ClassResults Class = "results-read"
	ClassAuth    Class = "auth"
	ClassDefault Class = "default"
)

// Limit is the (window, ceiling) pair configured for a class.
type Limit struct {
	Window time.Duration
	Max    int
}

// Result is the outcome of a limiter check. Limit, Remaining and ResetAt are
// reported on every call so the gateway can emit self-throttling headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the seconds until the window resets, floored at 1 so a
// Retry-After header is never zero.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks fixed windows per (client, class) key. The table is the
// only shared mutable state in the gateway and is guarded by a mutex;
// expired windows are swept inline on each check, so no background task is
// needed to bound memory.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limits  map[Class]Limit
	now     func() time.Time
}

// New creates a limiter with the given per-class limits. Classes absent from
// the map fall back to the default class; if that is also absent the check
// always allows.
func New(limits map[Class]Limit) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limits:  limits,
		now:     time.Now,
	}
}

// Check records one request attempt for the key and reports whether it may
// proceed. A request arriving exactly at a window's reset instant starts a
// fresh window rather than counting against the old one.
func (l *Limiter) Check(clientID string, class Class) Result {
	limit, ok := l.limits[class]
	if !ok {
		limit, ok = l.limits[ClassDefault]
		if !ok {
			return Result{Allowed: true, Remaining: -1}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	key := clientID + "\x00" + string(class)
	w, live := l.windows[key]
	if !live {
		l.windows[key] = &window{count: 1, resetAt: now.Add(limit.Window)}
		return Result{
			Allowed:   true,
			Limit:     limit.Max,
			Remaining: limit.Max - 1,
			ResetAt:   now.Add(limit.Window),
		}
	}

	if w.count < limit.Max {
		w.count++
		return Result{
			Allowed:   true,
			Limit:     limit.Max,
			Remaining: limit.Max - w.count,
			ResetAt:   w.resetAt,
		}
	}

	return Result{
		Allowed:   false,
		Limit:     limit.Max,
		Remaining: 0,
		ResetAt:   w.resetAt,
	}
}

// sweep drops every expired window, not just the current key's, bounding
// table growth without a separate cleanup goroutine. Caller holds the lock.
func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
