package ghapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/go-github/v82/github"
	"github.com/inovacc/ghnotify/internal/model"
)

// gh returns a go-github client sharing this client's transport and base URL.
func (c *Client) gh() *github.Client {
	client := github.NewClient(c.httpClient)
	client.BaseURL = c.BaseURL()

	return client
}

// CurrentUser returns the authenticated account.
func (c *Client) CurrentUser(ctx context.Context) (*model.Account, error) {
	if blocked, resetAt := c.tracker.Blocked(); blocked {
		return nil, &Error{Kind: KindRateLimitExceeded, ResetAt: resetAt}
	}

	user, resp, err := c.gh().Users.Get(ctx, "")
	c.observe(resp)

	if err != nil {
		return nil, c.fromGitHub(resp, err)
	}

	return &model.Account{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		AvatarURL: user.GetAvatarURL(),
		HTMLURL:   user.GetHTMLURL(),
	}, nil
}

// MarkThreadRead marks a notification thread as read.
func (c *Client) MarkThreadRead(ctx context.Context, threadID string) error {
	if blocked, resetAt := c.tracker.Blocked(); blocked {
		return &Error{Kind: KindRateLimitExceeded, ResetAt: resetAt}
	}

	resp, err := c.gh().Activity.MarkThreadRead(ctx, threadID)
	c.observe(resp)

	if err != nil {
		return c.fromGitHub(resp, err)
	}

	return nil
}

func (c *Client) observe(resp *github.Response) {
	if resp == nil || resp.Response == nil {
		return
	}

	c.tracker.Update(resp.Header)
}

// fromGitHub maps go-github errors onto the same kinds Get produces.
func (c *Client) fromGitHub(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{Kind: KindRateLimitExceeded, StatusCode: http.StatusForbidden, ResetAt: rateErr.Rate.Reset.Time, Err: err}
	}

	if resp == nil || resp.Response == nil {
		return &Error{Kind: KindNetwork, Err: err}
	}

	code := resp.StatusCode

	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return &Error{Kind: KindUnauthorized, StatusCode: code, Err: err}
	case code == http.StatusNotFound:
		return &Error{Kind: KindNotFound, StatusCode: code, Err: err}
	case code >= 500 && code <= 599:
		return &Error{Kind: KindServerError, StatusCode: code, Err: err}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Message != "" {
		return &Error{Kind: KindUnknown, StatusCode: code, Message: ghErr.Message, Err: err}
	}

	return &Error{Kind: KindUnknown, StatusCode: code, Err: err}
}
