package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackSenderName is the name the Slack sender registers under.
const SlackSenderName = "slack"

// SlackSender forwards alerts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	channel    string
	repos      []string
	httpClient *http.Client
}

// SlackOption configures a SlackSender.
type SlackOption func(*SlackSender)

// WithChannel overrides the webhook's default channel.
func WithChannel(channel string) SlackOption {
	return func(s *SlackSender) {
		s.channel = channel
	}
}

// WithRepoFilters only forwards alerts whose repository matches one of the
// patterns ("owner/*", "*/repo", "owner/repo").
func WithRepoFilters(patterns ...string) SlackOption {
	return func(s *SlackSender) {
		s.repos = patterns
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SlackOption {
	return func(s *SlackSender) {
		s.httpClient = client
	}
}

// NewSlackSender creates a sender posting to webhookURL.
func NewSlackSender(webhookURL string, opts ...SlackOption) *SlackSender {
	s := &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SlackSender) Name() string {
	return SlackSenderName
}

func (s *SlackSender) Send(ctx context.Context, n *Notification) error {
	if !s.matchRepo(n.Repository) {
		return nil
	}

	return s.post(ctx, FormatSlackMessage(n, s.channel))
}

func (s *SlackSender) Test(ctx context.Context) error {
	return s.post(ctx, FormatTestMessage(s.channel))
}

func (s *SlackSender) post(ctx context.Context, msg *SlackMessage) error {
	if s.webhookURL == "" {
		return errors.New("no webhook URL configured")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func (s *SlackSender) matchRepo(repo string) bool {
	if len(s.repos) == 0 {
		return true
	}

	for _, p := range s.repos {
		if matchPattern(repo, p) {
			return true
		}
	}

	return false
}

// matchPattern performs simple wildcard matching.
func matchPattern(value, pattern string) bool {
	if pattern == "*" {
		return true
	}

	// suffix wildcard, e.g. "octo/*"
	if prefix, found := strings.CutSuffix(pattern, "*"); found {
		return strings.HasPrefix(value, prefix)
	}

	// prefix wildcard, e.g. "*/docs"
	if suffix, found := strings.CutPrefix(pattern, "*"); found {
		return strings.HasSuffix(value, suffix)
	}

	return value == pattern
}

// ValidateWebhookURL checks if a webhook URL is valid.
func ValidateWebhookURL(url string) error {
	if url == "" {
		return errors.New("webhook URL is required")
	}

	if !strings.HasPrefix(url, "https://hooks.slack.com/services/") {
		return errors.New("invalid Slack webhook URL: must start with https://hooks.slack.com/services/")
	}

	return nil
}
