// Package ghapi is a conditional, rate-limit-aware client for the GitHub
// REST API.
//
// Every response, whatever its status, feeds the shared ratelimit.Tracker.
// Responses are classified into *Error values of a stable Kind so callers can
// distinguish "not modified", "unauthorized", "rate limited" and transport
// failures without inspecting status codes.
package ghapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
	"github.com/inovacc/ghnotify/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// APIVersion is sent as X-GitHub-Api-Version.
	APIVersion = "2022-11-28"

	// RequestTimeout bounds the wait for response headers.
	RequestTimeout = 30 * time.Second

	// ResourceTimeout bounds the whole exchange including the body.
	ResourceTimeout = 60 * time.Second

	// MaxResponseSize caps the body read from a successful response.
	MaxResponseSize = 16 << 20

	mediaType = "application/vnd.github+json"
)

// Conditional carries the cache validators of a previous response.
type Conditional struct {
	IfModifiedSince string
	IfNoneMatch     string
}

// Response is the metadata of a successful request.
type Response struct {
	StatusCode   int
	RateLimit    *model.RateLimit
	LastModified string
	ETag         string
}

// Client issues authenticated GET requests against the GitHub API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	logger     *slog.Logger
	maxBody    int64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(strings.TrimRight(raw, "/") + "/"); err == nil {
			c.baseURL = u
		}
	}
}

// WithTracker shares a rate limit tracker with other components.
func WithTracker(t *ratelimit.Tracker) Option {
	return func(c *Client) {
		c.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMaxResponseSize overrides MaxResponseSize.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// NewClient creates a client. httpClient is expected to attach credentials
// (see auth.NewHTTPClient); nil falls back to an unauthenticated client with
// the default timeouts.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}

	base, _ := url.Parse(DefaultBaseURL + "/")

	c := &Client{
		baseURL:    base,
		httpClient: httpClient,
		tracker:    ratelimit.NewTracker(),
		logger:     slog.Default(),
		maxBody:    MaxResponseSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewHTTPClient returns an http.Client with the request and resource
// timeouts applied. wrap decorates the base transport when non-nil.
func NewHTTPClient(wrap func(http.RoundTripper) http.RoundTripper) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = RequestTimeout

	var rt http.RoundTripper = base
	if wrap != nil {
		rt = wrap(base)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   ResourceTimeout,
	}
}

// Tracker returns the rate limit tracker fed by this client.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get fetches path and decodes a 200 body into out. A 304 is reported as an
// error matching ErrNotModified; nothing is decoded in that case.
func (c *Client) Get(ctx context.Context, path string, query url.Values, cond Conditional, out any) (*Response, error) {
	if blocked, resetAt := c.tracker.Blocked(); blocked {
		return nil, &Error{Kind: KindRateLimitExceeded, ResetAt: resetAt}
	}

	u, err := c.baseURL.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("invalid URL: %v", err)}
	}

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("invalid request: %v", err)}
	}

	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)

	if cond.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", cond.IfModifiedSince)
	}

	if cond.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", cond.IfNoneMatch)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	meta := &Response{StatusCode: resp.StatusCode}

	if rl, ok := c.tracker.Update(resp.Header); ok {
		meta.RateLimit = &rl
	} else {
		c.logger.Debug("rate limit headers missing or malformed", "path", path, "status", resp.StatusCode)
	}

	if err := c.classify(resp, meta); err != nil {
		return meta, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return meta, &Error{Kind: KindNetwork, Err: err}
	}

	if int64(len(body)) > c.maxBody {
		return meta, &Error{
			Kind:       KindDecoding,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", c.maxBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return meta, &Error{Kind: KindDecoding, StatusCode: resp.StatusCode, Err: err}
		}
	}

	meta.LastModified = resp.Header.Get("Last-Modified")
	meta.ETag = resp.Header.Get("ETag")

	return meta, nil
}

// classify maps a non-200 status to an *Error.
func (c *Client) classify(resp *http.Response, meta *Response) error {
	code := resp.StatusCode

	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotModified:
		return &Error{Kind: KindNotModified, StatusCode: code}
	case code == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, StatusCode: code}
	case code == http.StatusForbidden:
		if meta.RateLimit != nil && meta.RateLimit.Exhausted() {
			return &Error{Kind: KindRateLimitExceeded, StatusCode: code, ResetAt: meta.RateLimit.ResetAt()}
		}

		return &Error{Kind: KindUnauthorized, StatusCode: code}
	case code == http.StatusNotFound:
		return &Error{Kind: KindNotFound, StatusCode: code}
	case code >= 500 && code <= 599:
		return &Error{Kind: KindServerError, StatusCode: code}
	}

	var body struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return &Error{Kind: KindUnknown, StatusCode: code, Message: body.Message}
	}

	return &Error{Kind: KindUnknown, StatusCode: code}
}
