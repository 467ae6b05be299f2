// Package notify turns notification threads into user-visible alerts and
// fans them out to the configured senders.
package notify

import (
	"context"
	"time"
)

// Notification is one alert ready for delivery.
type Notification struct {
	// ID is the notification thread id, used as the alert identifier
	ID string

	// Title is "<reason emoji> <owner/repo>"
	Title string

	// Body is "<subject type>: <subject title>"
	Body string

	// URL is the web page of the subject, if known
	URL string

	// Sound requests an audible alert
	Sound bool

	// Repository is the full name of the repository (owner/repo)
	Repository string

	// Reason is the notification reason (mention, review_requested, ...)
	Reason string

	// SubjectType is the raw subject type (Issue, PullRequest, ...)
	SubjectType string

	// Timestamp is the thread's updated_at, or the delivery time when unknown
	Timestamp time.Time
}

// Notifier delivers alerts. Delivery is fire-and-forget.
type Notifier interface {
	Deliver(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Deliver(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Sender is one delivery channel behind the Dispatcher.
type Sender interface {
	// Send delivers n, returning an error if it could not.
	Send(ctx context.Context, n *Notification) error

	// Name returns the sender's name for logging purposes.
	Name() string

	// Test sends a test alert to verify configuration.
	Test(ctx context.Context) error
}
