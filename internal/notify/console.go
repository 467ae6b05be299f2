package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	bannerTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	bannerBodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	bannerURLStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Underline(true)
	bannerTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// ConsoleSender prints alerts to a terminal, styled when the writer is a TTY.
type ConsoleSender struct {
	mu     sync.Mutex
	out    io.Writer
	styled bool
}

// NewConsoleSender writes to out; nil means stdout.
func NewConsoleSender(out io.Writer) *ConsoleSender {
	if out == nil {
		out = os.Stdout
	}

	return &ConsoleSender{out: out, styled: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *ConsoleSender) Name() string {
	return "console"
}

func (s *ConsoleSender) Send(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder

	if n.Sound {
		b.WriteString("\a")
	}

	b.WriteString(s.render(n))
	b.WriteString("\n")

	_, err := io.WriteString(s.out, b.String())

	return err
}

func (s *ConsoleSender) Test(ctx context.Context) error {
	return s.Send(ctx, &Notification{
		ID:    "test",
		Title: ReasonEmoji("") + " ghnotify",
		Body:  "Test notification",
	})
}

func (s *ConsoleSender) render(n *Notification) string {
	stamp := ""
	if !n.Timestamp.IsZero() {
		stamp = n.Timestamp.Local().Format("15:04")
	}

	if !s.styled {
		line := fmt.Sprintf("%s | %s", n.Title, n.Body)
		if n.URL != "" {
			line += " | " + n.URL
		}

		if stamp != "" {
			line = "[" + stamp + "] " + line
		}

		return line
	}

	lines := []string{bannerTitleStyle.Render(n.Title), bannerBodyStyle.Render(n.Body)}
	if n.URL != "" {
		lines = append(lines, bannerURLStyle.Render(n.URL))
	}

	if stamp != "" {
		lines = append(lines, bannerTimeStyle.Render(stamp))
	}

	return bannerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
