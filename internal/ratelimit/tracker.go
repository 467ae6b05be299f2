// Package ratelimit tracks the GitHub API quota reported in response headers.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
)

// Header names used by the GitHub REST API.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderUsed      = "X-RateLimit-Used"
)

// Parse reads the quota headers. All four headers must be present and
// numeric, otherwise ok is false.
func Parse(h http.Header) (model.RateLimit, bool) {
	limit, ok := intHeader(h, HeaderLimit)
	if !ok {
		return model.RateLimit{}, false
	}

	remaining, ok := intHeader(h, HeaderRemaining)
	if !ok {
		return model.RateLimit{}, false
	}

	reset, ok := intHeader(h, HeaderReset)
	if !ok {
		return model.RateLimit{}, false
	}

	used, ok := intHeader(h, HeaderUsed)
	if !ok {
		return model.RateLimit{}, false
	}

	return model.RateLimit{
		Limit:     int(limit),
		Remaining: int(remaining),
		Reset:     reset,
		Used:      int(used),
	}, true
}

func intHeader(h http.Header, key string) (int64, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Tracker holds the most recent quota. Each update replaces the previous
// value wholesale; malformed or missing headers leave it untouched.
type Tracker struct {
	mu      sync.RWMutex
	current model.RateLimit
	known   bool
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// WithClock overrides the time source used by Blocked.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Update parses h and stores the result when the headers are well formed.
func (t *Tracker) Update(h http.Header) (model.RateLimit, bool) {
	rl, ok := Parse(h)
	if !ok {
		return model.RateLimit{}, false
	}

	t.Set(rl)

	return rl, true
}

// Set replaces the current value.
func (t *Tracker) Set(rl model.RateLimit) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = rl
	t.known = true
}

// Current returns the last known quota.
func (t *Tracker) Current() (model.RateLimit, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.current, t.known
}

// Blocked reports whether the quota is exhausted and its reset time has not
// passed yet. resetAt is only meaningful when blocked is true.
func (t *Tracker) Blocked() (blocked bool, resetAt time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.known || !t.current.Exhausted() {
		return false, time.Time{}
	}

	resetAt = t.current.ResetAt()
	if !t.now().Before(resetAt) {
		return false, time.Time{}
	}

	return true, resetAt
}
