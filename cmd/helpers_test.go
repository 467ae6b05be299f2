package cmd

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/inovacc/ghnotify/internal/config"
	"github.com/inovacc/ghnotify/internal/model"
	"github.com/inovacc/ghnotify/internal/notify"
	"github.com/inovacc/ghnotify/internal/scheduler"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "text info", level: "info", format: "text"},
		{name: "json debug", level: "debug", format: "json"},
		{name: "uppercase level", level: "WARN", format: ""},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger, err := newLogger(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			logger.Error("hello", "k", "v")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestRelative(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "less than a minute ago"},
		{5 * time.Minute, "5 min ago"},
		{3 * time.Hour, "3 h ago"},
		{50 * time.Hour, "2 d ago"},
		{-10 * time.Minute, "in 10 min"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, relative(tt.d))
		})
	}
}

func TestFormatTime_Zero(t *testing.T) {
	assert.Equal(t, "never", formatTime(time.Time{}))
}

func TestFormatCycle(t *testing.T) {
	assert.Equal(t, "✓ Sync complete, nothing changed", formatCycle(scheduler.CycleResult{NotModified: true}))
	assert.Equal(t, "✓ Sync complete, 4 thread(s), 2 new", formatCycle(scheduler.CycleResult{Threads: 4, Delivered: 2}))
	assert.Equal(t, "✓ Sync complete, 3 thread(s), alerts paused", formatCycle(scheduler.CycleResult{Threads: 3, Paused: true}))
}

func TestFormatStatusLine(t *testing.T) {
	assert.Empty(t, formatStatusLine(scheduler.Status{State: scheduler.StateSyncing}))
	assert.Contains(t, formatStatusLine(scheduler.Status{State: scheduler.StatePaused}), "paused")

	line := formatStatusLine(scheduler.Status{State: scheduler.StateErrored, Reason: "rate limit exceeded"})
	assert.Contains(t, line, "rate limit exceeded")
	assert.True(t, strings.Contains(line, "polling stopped"))

	line = formatStatusLine(scheduler.Status{State: scheduler.StateErrored, Reason: "boom", TimerRunning: true})
	assert.NotContains(t, line, "polling stopped")
}

func recentThreads() []model.NotificationThread {
	return []model.NotificationThread{
		{
			ID:         "1",
			Repository: model.Repository{FullName: "octo/hello"},
			Subject:    model.Subject{Title: "Fix the thing", Type: "PullRequest"},
			Reason:     "review_requested",
			Unread:     true,
		},
		{
			ID:         "2",
			Repository: model.Repository{FullName: "octo/world"},
			Subject:    model.Subject{Title: "Crash on start", Type: "Issue"},
			Reason:     "mention",
		},
	}
}

func TestFormatRecent(t *testing.T) {
	out := formatRecent(recentThreads())

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "octo/hello")
	assert.Contains(t, lines[0], "Pull Request: Fix the thing")
	assert.Contains(t, lines[0], "•")
	assert.Contains(t, lines[1], "Issue: Crash on start")
	assert.NotContains(t, lines[1], "•")

	assert.Contains(t, formatRecent(nil), "no recent notifications")
}

func TestFormatQuota(t *testing.T) {
	assert.Contains(t, formatQuota(nil), "unknown")

	rl := &model.RateLimit{Limit: 5000, Remaining: 4990, Reset: time.Now().Add(time.Hour).Unix()}
	assert.Contains(t, formatQuota(rl), "4990/5000")
	assert.Contains(t, formatQuota(rl), "resets")
}

func TestFormatSyncSummary(t *testing.T) {
	st := scheduler.Status{
		Recent:    recentThreads(),
		RateLimit: &model.RateLimit{Limit: 60, Remaining: 12},
	}

	out := formatSyncSummary(scheduler.CycleResult{Threads: 2, Delivered: 1}, st)
	assert.Contains(t, out, "2 thread(s), 1 new")
	assert.Contains(t, out, "Rate limit: 12/60")
	assert.Contains(t, out, "Fix the thing")
	assert.Contains(t, out, "Crash on start")

	out = formatSyncSummary(scheduler.CycleResult{NotModified: true}, st)
	assert.Contains(t, out, "nothing changed")
	assert.Contains(t, out, "12/60")
	assert.NotContains(t, out, "Fix the thing")
}

func TestConfigureSlack(t *testing.T) {
	a := &app{logger: slog.Default()}
	d := notify.NewDispatcher()

	names := func() []string {
		var out []string
		for _, s := range d.Senders() {
			out = append(out, s.Name())
		}

		return out
	}

	set := config.Defaults()
	set.Slack.WebhookURL = "https://hooks.slack.com/services/T000/B000/XXXX"

	a.configureSlack(d, set)
	a.configureSlack(d, set)
	assert.Equal(t, []string{notify.SlackSenderName}, names())

	set.Slack.WebhookURL = "https://example.com/hook"
	a.configureSlack(d, set)
	assert.Empty(t, names())
	assert.False(t, d.HasSenders())
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"login", "logout", "whoami", "sync", "run", "status", "cache", "config", "mark-read", "service", "notify"}

	for _, name := range want {
		c, _, err := GetRootCmd().Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestAddGlobalFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addGlobalFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log-level", "debug", "--log-format", "json"}))
	assert.Equal(t, "debug", logLevel)
	assert.Equal(t, "json", logFormat)
}
