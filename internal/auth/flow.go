package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cli/oauth"
	"github.com/cli/oauth/api"
	"github.com/cli/oauth/device"
	"github.com/inovacc/ghnotify/internal/eventbus"
	"github.com/inovacc/ghnotify/internal/model"
)

const (
	// DefaultHost is the OAuth host for github.com.
	DefaultHost = "https://github.com"

	// DefaultScope is requested when none is configured.
	DefaultScope = "notifications repo"

	// SlowDownStep is added to the poll interval on every slow_down answer.
	SlowDownStep = 5 * time.Second

	defaultInterval = 5

	grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
)

// State is the device flow state.
type State int

const (
	StateIdle State = iota
	StateRequestingCode
	StateAwaitingApproval
	StateSucceeded
	StateFailed
	StateCancelled
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingCode:
		return "requesting_code"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the flow has finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled || s == StateExpired
}

// FlowErrorKind classifies a device flow failure.
type FlowErrorKind int

const (
	FlowUnknown FlowErrorKind = iota
	FlowInvalidClient
	FlowNetwork
	FlowInvalidResponse
	FlowExpiredToken
	FlowAccessDenied
	FlowIncorrectDeviceCode
	FlowUnsupportedGrantType
	FlowStore
	FlowExpired
	FlowSuperseded
)

func (k FlowErrorKind) String() string {
	switch k {
	case FlowInvalidClient:
		return "invalid_client"
	case FlowNetwork:
		return "network_error"
	case FlowInvalidResponse:
		return "invalid_response"
	case FlowExpiredToken:
		return "expired_token"
	case FlowAccessDenied:
		return "access_denied"
	case FlowIncorrectDeviceCode:
		return "incorrect_device_code"
	case FlowUnsupportedGrantType:
		return "unsupported_grant_type"
	case FlowStore:
		return "store_error"
	case FlowExpired:
		return "expired"
	case FlowSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// FlowError is returned, and recorded, when the flow fails.
type FlowError struct {
	Kind   FlowErrorKind
	Reason string // raw error code from the token endpoint, if any
	Err    error
}

func (e *FlowError) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" && e.Reason != msg {
		msg += " (" + e.Reason + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return "device flow: " + msg
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Is matches another *FlowError of the same kind.
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	return ok && t.Kind == e.Kind && t.Err == nil && t.Reason == ""
}

// kindForCode maps a token endpoint error code to a FlowErrorKind.
func kindForCode(code string) FlowErrorKind {
	switch code {
	case "expired_token":
		return FlowExpiredToken
	case "access_denied":
		return FlowAccessDenied
	case "incorrect_device_code":
		return FlowIncorrectDeviceCode
	case "unsupported_grant_type":
		return FlowUnsupportedGrantType
	case "incorrect_client_credentials":
		return FlowInvalidClient
	default:
		return FlowUnknown
	}
}

// FlowEvent is published on eventbus.TopicAuthFlow for every transition.
type FlowEvent struct {
	State State
	Err   error
}

// LoginEvent is published on eventbus.TopicLogin after a credential write.
type LoginEvent struct {
	Source string
}

// Status is a snapshot of the controller.
type Status struct {
	State         State
	Err           error
	Authorization *model.DeviceAuthorization
}

// Controller drives the OAuth device authorization flow and persists the
// resulting token. Only the most recently started flow may change state.
type Controller struct {
	mu     sync.Mutex
	state  State
	err    error
	auth   *model.DeviceAuthorization
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	host       *oauth.Host
	httpClient *http.Client
	store      CredentialStore
	bus        eventbus.Publisher
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithOAuthHost sets the OAuth endpoints.
func WithOAuthHost(h *oauth.Host) ControllerOption {
	return func(c *Controller) {
		c.host = h
	}
}

// WithFlowHTTPClient sets the client used for the OAuth endpoints.
func WithFlowHTTPClient(hc *http.Client) ControllerOption {
	return func(c *Controller) {
		c.httpClient = hc
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p eventbus.Publisher) ControllerOption {
	return func(c *Controller) {
		c.bus = p
	}
}

// WithFlowLogger sets the logger.
func WithFlowLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSleep replaces the wait between poll attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ControllerOption {
	return func(c *Controller) {
		c.sleep = fn
	}
}

// NewController creates an idle controller writing to store.
func NewController(store CredentialStore, opts ...ControllerOption) *Controller {
	host, _ := oauth.NewGitHubHost(DefaultHost)

	c := &Controller{
		host:       host,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		bus:        eventbus.Nop{},
		logger:     slog.Default(),
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewHost returns the OAuth endpoints for a GitHub host URL.
func NewHost(hostURL string) (*oauth.Host, error) {
	if hostURL == "" {
		hostURL = DefaultHost
	}

	h, err := oauth.NewGitHubHost(hostURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OAuth host %q: %w", hostURL, err)
	}

	return h, nil
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{State: c.state, Err: c.err, Authorization: c.auth}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.Status().State
}

// StartFlow requests a device code. Any flow in progress is cancelled first.
func (c *Controller) StartFlow(ctx context.Context, clientID, scope string) (*model.DeviceAuthorization, error) {
	c.Cancel()

	if strings.TrimSpace(clientID) == "" {
		err := &FlowError{Kind: FlowInvalidClient, Err: errors.New("client ID is empty")}
		c.setState(c.generation(), StateFailed, err)

		return nil, err
	}

	if scope == "" {
		scope = DefaultScope
	}

	gen := c.bump()
	c.setState(gen, StateRequestingCode, nil)

	code, err := device.RequestCode(formPoster{ctx: ctx, client: c.httpClient}, c.host.DeviceCodeURL, clientID, strings.Fields(scope))
	if err != nil {
		ferr := classifyRequestError(err)
		c.setState(gen, StateFailed, ferr)

		return nil, ferr
	}

	da := &model.DeviceAuthorization{
		DeviceCode:      code.DeviceCode,
		UserCode:        code.UserCode,
		VerificationURI: code.VerificationURI,
		ExpiresIn:       code.ExpiresIn,
		Interval:        code.Interval,
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, &FlowError{Kind: FlowSuperseded}
	}

	c.auth = da
	c.mu.Unlock()

	c.setState(gen, StateAwaitingApproval, nil)
	c.logger.Info("device code issued", "user_code", da.UserCode, "verification_uri", da.VerificationURI, "expires_in", da.ExpiresIn)

	return da, nil
}

// BeginPolling starts the background token poll for the pending
// authorization.
func (c *Controller) BeginPolling(clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingApproval || c.auth == nil {
		return fmt.Errorf("no pending device authorization (state %s)", c.state)
	}

	if c.cancel != nil {
		return errors.New("polling already in progress")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.cancel = cancel
	c.done = done

	go func(gen uint64, da model.DeviceAuthorization) {
		defer cancel()
		c.poll(ctx, gen, clientID, da, done)
	}(c.gen, *c.auth)

	return nil
}

// Wait blocks until the running poll loop ends or ctx is done, and returns
// the resulting status.
func (c *Controller) Wait(ctx context.Context) (Status, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Status(), ctx.Err()
		}
	}

	st := c.Status()

	return st, st.Err
}

// Cancel stops the poll loop, waits for it to exit and resets to idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	wasActive := c.state == StateRequestingCode || c.state == StateAwaitingApproval

	c.gen++
	c.cancel, c.done = nil, nil
	c.auth = nil
	c.state, c.err = StateIdle, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if wasActive {
		c.logger.Info("device flow cancelled")
		c.bus.Publish(eventbus.Event{Type: eventbus.TopicAuthFlow, Data: FlowEvent{State: StateCancelled}})
	}
}

// Adopt stores an externally obtained token as if a flow had succeeded.
func (c *Controller) Adopt(token, source string) error {
	c.Cancel()

	gen := c.generation()

	if err := c.store.Save(token); err != nil {
		ferr := &FlowError{Kind: FlowStore, Err: err}
		c.setState(gen, StateFailed, ferr)

		return ferr
	}

	c.setState(gen, StateSucceeded, nil)
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicLogin, Data: LoginEvent{Source: source}})

	return nil
}

// Logout deletes the stored credential.
func (c *Controller) Logout() error {
	c.Cancel()

	if err := c.store.Delete(); err != nil {
		var se *StoreError
		if !errors.As(err, &se) {
			err = &StoreError{Operation: "delete", Err: err}
		}

		return err
	}

	c.logger.Info("logged out")
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicLogout})

	return nil
}

func (c *Controller) poll(ctx context.Context, gen uint64, clientID string, da model.DeviceAuthorization, done chan struct{}) {
	defer close(done)

	intervalSecs := da.Interval
	if intervalSecs <= 0 {
		intervalSecs = defaultInterval
	}

	wait := time.Duration(intervalSecs) * time.Second
	maxAttempts := da.ExpiresIn / intervalSecs

	poster := formPoster{ctx: ctx, client: c.httpClient}
	params := url.Values{
		"client_id":   {clientID},
		"device_code": {da.DeviceCode},
		"grant_type":  {grantTypeDeviceCode},
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.sleep(ctx, wait); err != nil {
			return
		}

		if ctx.Err() != nil {
			return
		}

		resp, err := api.PostForm(poster, c.host.TokenURL, params)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			c.logger.Debug("token poll failed, retrying", "attempt", attempt, "error", err)
			continue
		}

		token, err := resp.AccessToken()
		if err == nil {
			c.succeed(gen, token.Token)
			return
		}

		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			c.fail(gen, StateFailed, &FlowError{Kind: FlowInvalidResponse, Err: err})
			return
		}

		switch apiErr.Code {
		case "authorization_pending":
			c.logger.Debug("authorization pending", "attempt", attempt)
		case "slow_down":
			wait += SlowDownStep
			c.logger.Debug("slow down requested", "attempt", attempt, "interval", wait)
		default:
			c.fail(gen, StateFailed, &FlowError{Kind: kindForCode(apiErr.Code), Reason: apiErr.Code, Err: err})
			return
		}
	}

	c.fail(gen, StateExpired, &FlowError{Kind: FlowExpired, Err: errors.New("device code expired before approval")})
}

// succeed persists the token if gen is still the active flow. The store is
// called without holding c.mu; a flow cancelled or superseded meanwhile
// takes its token back out of the store.
func (c *Controller) succeed(gen uint64, token string) {
	if c.generation() != gen {
		return
	}

	saveErr := c.store.Save(token)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()

		if saveErr == nil {
			c.discard(token)
		}

		return
	}

	if saveErr != nil {
		ferr := &FlowError{Kind: FlowStore, Err: saveErr}
		c.state, c.err, c.auth, c.cancel = StateFailed, ferr, nil, nil
		c.mu.Unlock()

		c.logger.Error("failed to store credential", "error", saveErr)
		c.bus.Publish(eventbus.Event{Type: eventbus.TopicAuthFlow, Data: FlowEvent{State: StateFailed, Err: ferr}})

		return
	}

	c.state, c.err, c.auth, c.cancel = StateSucceeded, nil, nil, nil
	c.mu.Unlock()

	c.logger.Info("device flow succeeded")
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicAuthFlow, Data: FlowEvent{State: StateSucceeded}})
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicLogin, Data: LoginEvent{Source: "device_flow"}})
}

// discard removes token from the store unless something else replaced it.
func (c *Controller) discard(token string) {
	cur, ok, err := c.store.Load()
	if err != nil || !ok || cur != token {
		return
	}

	if err := c.store.Delete(); err != nil {
		c.logger.Warn("failed to remove credential of abandoned flow", "error", err)
		return
	}

	c.logger.Info("device flow abandoned while storing credential")
}

func (c *Controller) fail(gen uint64, state State, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	c.state, c.err, c.auth, c.cancel = state, err, nil, nil
	c.mu.Unlock()

	c.logger.Warn("device flow ended", "state", state.String(), "error", err)
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicAuthFlow, Data: FlowEvent{State: state, Err: err}})
}

func (c *Controller) setState(gen uint64, state State, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	c.state, c.err = state, err
	if state.Terminal() {
		c.auth = nil
	}
	c.mu.Unlock()

	c.bus.Publish(eventbus.Event{Type: eventbus.TopicAuthFlow, Data: FlowEvent{State: state, Err: err}})
}

func (c *Controller) bump() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	return c.gen
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen
}

func classifyRequestError(err error) *FlowError {
	var urlErr *url.Error
	var netErr net.Error

	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &FlowError{Kind: FlowNetwork, Err: err}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Code == "incorrect_client_credentials" {
		return &FlowError{Kind: FlowInvalidClient, Reason: apiErr.Code, Err: err}
	}

	return &FlowError{Kind: FlowInvalidResponse, Err: err}
}

// formPoster binds a context to the form posts made by cli/oauth so that
// cancelling the flow aborts the in-flight request.
type formPoster struct {
	ctx    context.Context
	client *http.Client
}

func (p formPoster) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.client.Do(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
