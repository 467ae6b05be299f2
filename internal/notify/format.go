package notify

import (
	"strings"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
)

const (
	apiReposPrefix     = "https://api.github.com/repos/"
	htmlRepoPrefix     = "https://github.com/"
	defaultReasonEmoji = "📬"
)

var reasonEmoji = map[string]string{
	"mention":          "👤",
	"team_mention":     "👤",
	"assign":           "📌",
	"author":           "✍️",
	"comment":          "💬",
	"review_requested": "👀",
	"state_change":     "🔄",
	"subscribed":       "🔔",
}

// ReasonEmoji returns the icon shown for a notification reason.
func ReasonEmoji(reason string) string {
	if e, ok := reasonEmoji[reason]; ok {
		return e
	}

	return defaultReasonEmoji
}

// TypeDescription returns a readable subject type.
func TypeDescription(subjectType string) string {
	switch subjectType {
	case "PullRequest":
		return "Pull Request"
	case "":
		return "Notification"
	default:
		return subjectType
	}
}

// HTMLURL converts an API resource URL to its web page.
func HTMLURL(apiURL string) string {
	u := strings.Replace(apiURL, apiReposPrefix, htmlRepoPrefix, 1)
	return strings.Replace(u, "/pulls/", "/pull/", 1)
}

// ThreadURL picks the best web link for a thread: the latest comment, then
// the subject, then the repository.
func ThreadURL(t model.NotificationThread) string {
	if t.Subject.LatestCommentURL != nil && *t.Subject.LatestCommentURL != "" {
		return HTMLURL(*t.Subject.LatestCommentURL)
	}

	if t.Subject.URL != nil && *t.Subject.URL != "" {
		return HTMLURL(*t.Subject.URL)
	}

	return t.Repository.HTMLURL
}

// FromThread builds the alert for a thread.
func FromThread(t model.NotificationThread, sound bool) Notification {
	ts, err := time.Parse(time.RFC3339, t.UpdatedAt)
	if err != nil {
		ts = time.Now()
	}

	return Notification{
		ID:          t.ID,
		Title:       ReasonEmoji(t.Reason) + " " + t.Repository.FullName,
		Body:        TypeDescription(t.Subject.Type) + ": " + t.Subject.Title,
		URL:         ThreadURL(t),
		Sound:       sound,
		Repository:  t.Repository.FullName,
		Reason:      t.Reason,
		SubjectType: t.Subject.Type,
		Timestamp:   ts,
	}
}
