package notify

import (
	"fmt"
	"strings"
)

// SlackMessage is an incoming-webhook payload with Block Kit formatting.
type SlackMessage struct {
	// Channel overrides the webhook's default channel when set
	Channel string `json:"channel,omitempty"`

	// Text is the fallback text for notifications
	Text string `json:"text"`

	// Attachments carry the blocks and a color bar
	Attachments []Attachment `json:"attachments,omitempty"`

	UnfurlLinks bool `json:"unfurl_links"`
	UnfurlMedia bool `json:"unfurl_media"`
}

// Block represents a Slack Block Kit block.
type Block struct {
	Type      string       `json:"type"`
	Text      *TextObject  `json:"text,omitempty"`
	Elements  []Element    `json:"elements,omitempty"`
	Fields    []TextObject `json:"fields,omitempty"`
	Accessory *Element     `json:"accessory,omitempty"`
}

// TextObject represents text content in a block.
type TextObject struct {
	Type  string `json:"type"` // "plain_text" or "mrkdwn"
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Element represents a button or context item.
type Element struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// Attachment is a legacy attachment, used for the color bar.
type Attachment struct {
	Color    string  `json:"color,omitempty"`
	Fallback string  `json:"fallback,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
}

var reasonColor = map[string]string{
	"review_requested": "#dbab09",
	"mention":          "#0366d6",
	"team_mention":     "#0366d6",
	"assign":           "#6f42c1",
	"state_change":     "#28a745",
}

// FormatSlackMessage builds the webhook payload for n.
func FormatSlackMessage(n *Notification, channel string) *SlackMessage {
	color, ok := reasonColor[n.Reason]
	if !ok {
		color = "#808080"
	}

	section := Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", escape(n.Title), escape(truncate(n.Body, 300)))},
	}

	if n.URL != "" {
		section.Accessory = &Element{
			Type: "button",
			Text: &TextObject{Type: "plain_text", Text: "Open", Emoji: true},
			URL:  n.URL,
		}
	}

	blocks := []Block{section, contextBlock(n)}

	return &SlackMessage{
		Channel: channel,
		Text:    n.Title + ": " + n.Body,
		Attachments: []Attachment{{
			Color:    color,
			Fallback: n.Body,
			Blocks:   blocks,
		}},
	}
}

func contextBlock(n *Notification) Block {
	parts := make([]string, 0, 3)

	if n.Reason != "" {
		parts = append(parts, "reason: `"+n.Reason+"`")
	}

	if n.SubjectType != "" {
		parts = append(parts, TypeDescription(n.SubjectType))
	}

	if !n.Timestamp.IsZero() {
		parts = append(parts, fmt.Sprintf("<!date^%d^{date_short_pretty} {time}|%s>",
			n.Timestamp.Unix(), n.Timestamp.UTC().Format("2006-01-02 15:04 UTC")))
	}

	return Block{
		Type:     "context",
		Elements: []Element{{Type: "mrkdwn", Text: &TextObject{Type: "mrkdwn", Text: strings.Join(parts, " | ")}}},
	}
}

// FormatTestMessage builds the payload sent by SlackSender.Test.
func FormatTestMessage(channel string) *SlackMessage {
	n := &Notification{Title: ReasonEmoji("") + " ghnotify", Body: "Slack delivery is configured correctly."}
	return FormatSlackMessage(n, channel)
}

// escape protects the characters Slack treats as control sequences.
func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen-3]) + "..."
}
