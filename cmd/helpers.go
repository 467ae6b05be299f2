package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/inovacc/ghnotify/internal/model"
	"github.com/inovacc/ghnotify/internal/notify"
	"github.com/inovacc/ghnotify/internal/scheduler"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// promptConfirm asks the user for confirmation and returns true if they confirm
func promptConfirm(prompt string) bool {
	_, _ = fmt.Fprint(os.Stdout, prompt)

	var response string

	_, _ = fmt.Scanln(&response)

	return response == "y" || response == "Y"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func participationLabel(participatingOnly bool) string {
	if participatingOnly {
		return "participating only"
	}

	return "all notifications"
}

// formatTime renders t as local time with a relative hint.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04:05"), relative(time.Since(t)))
}

func relative(d time.Duration) string {
	future := d < 0
	if future {
		d = -d
	}

	var s string

	switch {
	case d < time.Minute:
		s = "less than a minute"
	case d < time.Hour:
		s = fmt.Sprintf("%d min", int(d.Minutes()))
	case d < 24*time.Hour:
		s = fmt.Sprintf("%d h", int(d.Hours()))
	default:
		s = fmt.Sprintf("%d d", int(d.Hours()/24))
	}

	if future {
		return "in " + s
	}

	return s + " ago"
}

func formatCycle(res scheduler.CycleResult) string {
	switch {
	case res.NotModified:
		return "✓ Sync complete, nothing changed"
	case res.Paused:
		return fmt.Sprintf("✓ Sync complete, %d thread(s), alerts paused", res.Threads)
	default:
		return fmt.Sprintf("✓ Sync complete, %d thread(s), %d new", res.Threads, res.Delivered)
	}
}

// formatStatusLine renders a scheduler transition for the run loop. Syncing
// is not shown.
func formatStatusLine(st scheduler.Status) string {
	ts := time.Now().Format("15:04:05")

	switch st.State {
	case scheduler.StateIdle:
		return dimStyle.Render(fmt.Sprintf("[%s] idle, last sync %s", ts, formatTime(st.LastSyncAt)))
	case scheduler.StatePaused:
		return dimStyle.Render(fmt.Sprintf("[%s] paused", ts))
	case scheduler.StateErrored:
		line := fmt.Sprintf("[%s] error: %s", ts, st.Reason)
		if !st.TimerRunning {
			line += " (polling stopped)"
		}

		return errorStyle.Render(line)
	default:
		return ""
	}
}

// formatQuota renders the remaining API quota.
func formatQuota(rl *model.RateLimit) string {
	if rl == nil {
		return dimStyle.Render("unknown")
	}

	line := fmt.Sprintf("%d/%d (resets %s)", rl.Remaining, rl.Limit, formatTime(rl.ResetAt()))
	if rl.Exhausted() {
		return errorStyle.Render(line)
	}

	return line
}

// formatRecent lists the recent threads, newest first. Unread threads are
// marked with a dot.
func formatRecent(threads []model.NotificationThread) string {
	if len(threads) == 0 {
		return dimStyle.Render("  no recent notifications")
	}

	var b strings.Builder

	for i, t := range threads {
		if i > 0 {
			b.WriteString("\n")
		}

		marker := " "
		if t.Unread {
			marker = highlightStyle.Render("•")
		}

		_, _ = fmt.Fprintf(&b, "  %s %s %s  %s: %s",
			marker, notify.ReasonEmoji(t.Reason), t.Repository.FullName,
			notify.TypeDescription(t.Subject.Type), t.Subject.Title)
	}

	return b.String()
}

// formatSyncSummary renders what run prints after a completed cycle: the
// outcome, the quota and, when the list changed, the recent threads.
func formatSyncSummary(res scheduler.CycleResult, st scheduler.Status) string {
	ts := time.Now().Format("15:04:05")

	lines := []string{
		fmt.Sprintf("[%s] %s", ts, formatCycle(res)),
		"  Rate limit: " + formatQuota(st.RateLimit),
	}

	if !res.NotModified {
		lines = append(lines, "  Recent:", formatRecent(st.Recent))
	}

	return strings.Join(lines, "\n")
}
