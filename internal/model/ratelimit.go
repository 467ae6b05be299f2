package model

import "time"

// RateLimit holds the quota reported by the X-RateLimit-* headers.
type RateLimit struct {
	// Limit is the maximum number of requests per window
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window
	Remaining int `json:"remaining"`

	// Reset is the window reset time in epoch seconds
	Reset int64 `json:"reset"`

	// Used is the number of requests made in the current window
	Used int `json:"used"`
}

// ResetAt returns Reset as a time.
func (r RateLimit) ResetAt() time.Time {
	return time.Unix(r.Reset, 0)
}

// Exhausted reports whether no requests remain in the window.
func (r RateLimit) Exhausted() bool {
	return r.Remaining <= 0
}
