package ghapi

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotModified
	KindUnauthorized
	KindRateLimitExceeded
	KindNotFound
	KindServerError
	KindDecoding
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotModified:
		return "not_modified"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	case KindDecoding:
		return "decoding_error"
	case KindNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ErrNotModified matches any *Error of kind KindNotModified via errors.Is.
var ErrNotModified = &Error{Kind: KindNotModified}

// Error is returned for every failed request.
type Error struct {
	Kind       Kind
	StatusCode int
	ResetAt    time.Time // set for KindRateLimitExceeded
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotModified:
		return "not modified"
	case KindUnauthorized:
		return "unauthorized, please log in again"
	case KindRateLimitExceeded:
		return fmt.Sprintf("API rate limit exceeded, resets at %s", e.ResetAt.Format(time.DateTime))
	case KindNotFound:
		return "requested resource not found"
	case KindServerError:
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	case KindDecoding:
		return fmt.Sprintf("failed to decode response: %v", e.Err)
	case KindNetwork:
		return fmt.Sprintf("network error: %v", e.Err)
	}

	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("unexpected response (HTTP %d)", e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrNotModified) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.StatusCode == 0 && t.Err == nil
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return KindUnknown
}

// IsNotModified reports whether err signals a 304 response.
func IsNotModified(err error) bool {
	return KindOf(err) == KindNotModified
}

// IsRateLimited reports whether err signals an exhausted quota.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimitExceeded
}
