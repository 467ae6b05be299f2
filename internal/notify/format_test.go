package notify

import (
	"testing"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestReasonEmoji(t *testing.T) {
	tests := map[string]string{
		"mention":          "👤",
		"assign":           "📌",
		"author":           "✍️",
		"comment":          "💬",
		"review_requested": "👀",
		"state_change":     "🔄",
		"subscribed":       "🔔",
		"ci_activity":      "📬",
	}

	for reason, want := range tests {
		t.Run(reason, func(t *testing.T) {
			assert.Equal(t, want, ReasonEmoji(reason))
		})
	}
}

func TestTypeDescription(t *testing.T) {
	assert.Equal(t, "Pull Request", TypeDescription("PullRequest"))
	assert.Equal(t, "Issue", TypeDescription("Issue"))
	assert.Equal(t, "Release", TypeDescription("Release"))
	assert.Equal(t, "Notification", TypeDescription(""))
}

func TestThreadURL(t *testing.T) {
	repo := model.Repository{FullName: "octo/hello", HTMLURL: "https://github.com/octo/hello"}

	tests := []struct {
		name    string
		subject model.Subject
		want    string
	}{
		{
			name: "latest comment wins",
			subject: model.Subject{
				URL:              strPtr("https://api.github.com/repos/octo/hello/pulls/7"),
				LatestCommentURL: strPtr("https://api.github.com/repos/octo/hello/issues/comments/99"),
			},
			want: "https://github.com/octo/hello/issues/comments/99",
		},
		{
			name:    "pull request url",
			subject: model.Subject{URL: strPtr("https://api.github.com/repos/octo/hello/pulls/7")},
			want:    "https://github.com/octo/hello/pull/7",
		},
		{
			name:    "empty urls fall back to repository",
			subject: model.Subject{URL: strPtr(""), LatestCommentURL: nil},
			want:    "https://github.com/octo/hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThreadURL(model.NotificationThread{Repository: repo, Subject: tt.subject}))
		})
	}
}

func TestFromThread(t *testing.T) {
	th := model.NotificationThread{
		ID:         "42",
		Repository: model.Repository{FullName: "octo/hello"},
		Subject: model.Subject{
			Title: "Fix the thing",
			URL:   strPtr("https://api.github.com/repos/octo/hello/issues/3"),
			Type:  "Issue",
		},
		Reason:    "mention",
		Unread:    true,
		UpdatedAt: "2024-10-01T10:00:00Z",
	}

	n := FromThread(th, true)
	assert.Equal(t, "42", n.ID)
	assert.Equal(t, "👤 octo/hello", n.Title)
	assert.Equal(t, "Issue: Fix the thing", n.Body)
	assert.Equal(t, "https://github.com/octo/hello/issues/3", n.URL)
	assert.True(t, n.Sound)
	assert.Equal(t, time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC), n.Timestamp.UTC())
}
