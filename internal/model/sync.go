package model

import "time"

// SyncState is the persisted collection-level cache row.
type SyncState struct {
	// LastModified is the Last-Modified validator of the last 200 response
	LastModified string `json:"last_modified,omitempty"`

	// ETag is the ETag validator of the last 200 response
	ETag string `json:"etag,omitempty"`

	// QueryKey identifies the query the validators belong to; validators are
	// only replayed for the same query
	QueryKey string `json:"query_key,omitempty"`

	// LastSyncAt is when the last successful or not-modified poll finished
	LastSyncAt time.Time `json:"last_sync_at,omitzero"`
}

// HasValidator reports whether a conditional request can be issued.
func (s SyncState) HasValidator() bool {
	return s.LastModified != "" || s.ETag != ""
}

// SeenThread records the last delivered state of a notification thread.
type SeenThread struct {
	// ThreadID is the notification thread id
	ThreadID string `json:"id"`

	// UpdatedAt is the thread updated_at value at the time of delivery
	UpdatedAt string `json:"updated_at"`

	// LastNotifiedAt is when the thread was last delivered
	LastNotifiedAt time.Time `json:"last_notified_at"`
}

// DeviceAuthorization is the response of the device code request.
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}
