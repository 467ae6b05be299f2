package model

// NotificationThread is a GitHub notification thread as returned by
// GET /notifications.
type NotificationThread struct {
	// ID is the unique thread identifier
	ID string `json:"id"`

	// Repository is the repository the thread belongs to
	Repository Repository `json:"repository"`

	// Subject describes the issue, pull request, release, etc.
	Subject Subject `json:"subject"`

	// Reason is why the user received the notification (mention, assign, ...)
	Reason string `json:"reason"`

	// Unread reports whether the thread is unread
	Unread bool `json:"unread"`

	// UpdatedAt is the ISO-8601 timestamp of the last thread update
	UpdatedAt string `json:"updated_at"`

	// LastReadAt is the ISO-8601 timestamp of the last read, if any
	LastReadAt *string `json:"last_read_at"`

	// URL is the API URL of the thread
	URL string `json:"url"`
}

// Repository is the repository summary embedded in a notification thread.
type Repository struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Owner       Owner   `json:"owner"`
	HTMLURL     string  `json:"html_url"`
	Description *string `json:"description"`
	Private     bool    `json:"private"`
}

// Owner is the repository owner.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Subject is the thread subject.
type Subject struct {
	Title            string  `json:"title"`
	URL              *string `json:"url"`
	LatestCommentURL *string `json:"latest_comment_url"`
	Type             string  `json:"type"`
}

// Account is the authenticated GitHub user.
type Account struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}
