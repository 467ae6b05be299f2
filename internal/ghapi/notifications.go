package ghapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
)

// DefaultPerPage is the page size requested for notifications.
const DefaultPerPage = 50

// NotificationsQuery holds the GET /notifications parameters.
type NotificationsQuery struct {
	Participating bool
	All           bool
	Since         time.Time
	Before        time.Time
	PerPage       int
}

// NewNotificationsQuery builds the query for the participating-only setting.
func NewNotificationsQuery(participatingOnly bool, perPage int) NotificationsQuery {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	return NotificationsQuery{
		Participating: participatingOnly,
		All:           !participatingOnly,
		PerPage:       perPage,
	}
}

// Values encodes the query parameters.
func (q NotificationsQuery) Values() url.Values {
	v := url.Values{}

	if q.Participating {
		v.Set("participating", "true")
	}

	if q.All {
		v.Set("all", "true")
	}

	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339))
	}

	if !q.Before.IsZero() {
		v.Set("before", q.Before.UTC().Format(time.RFC3339))
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	v.Set("per_page", strconv.Itoa(perPage))

	return v
}

// Key identifies the query so cache validators are only replayed for the
// query that produced them.
func (q NotificationsQuery) Key() string {
	return q.Values().Encode()
}

// ListNotifications fetches the notification collection. Validators from a
// previous response turn the call into a conditional request; an unchanged
// collection yields an error matching ErrNotModified.
func (c *Client) ListNotifications(ctx context.Context, q NotificationsQuery, cond Conditional) ([]model.NotificationThread, *Response, error) {
	var threads []model.NotificationThread

	resp, err := c.Get(ctx, "notifications", q.Values(), cond, &threads)
	if err != nil {
		return nil, resp, err
	}

	return threads, resp, nil
}

// RateLimits fetches the core quota from GET /rate_limit. The endpoint does
// not count against the quota.
func (c *Client) RateLimits(ctx context.Context) (model.RateLimit, error) {
	var body struct {
		Resources struct {
			Core model.RateLimit `json:"core"`
		} `json:"resources"`
	}

	if _, err := c.Get(ctx, "rate_limit", nil, Conditional{}, &body); err != nil {
		return model.RateLimit{}, fmt.Errorf("fetching rate limit: %w", err)
	}

	c.tracker.Set(body.Resources.Core)

	return body.Resources.Core, nil
}
