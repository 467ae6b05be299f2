package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/inovacc/ghnotify/internal/application"
	"github.com/inovacc/ghnotify/internal/config"
	"github.com/inovacc/ghnotify/internal/eventbus"
	"github.com/inovacc/ghnotify/internal/notify"
	"github.com/inovacc/ghnotify/internal/process"
	"github.com/inovacc/ghnotify/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll GitHub notifications until interrupted",
	Long: `Start the polling scheduler in the foreground.

Settings changes (interval, participating only, paused) are picked up live from
the settings file. When no token is stored and the terminal is interactive, the
device flow runs first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runDaemon(ctx, a, term.IsTerminal(int(os.Stdin.Fd())))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runDaemon runs the scheduler until ctx is done. With interactive set, a
// missing token starts the device flow and the login starts the scheduler.
func runDaemon(ctx context.Context, a *app, interactive bool) error {
	pidPath, err := application.Path(application.PIDFile)
	if err != nil {
		return err
	}

	lock, err := process.Acquire(pidPath, application.AppName)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("failed to release pid file", "error", err)
		}
	}()

	d := a.dispatcher(notify.WithAsync(true))
	defer d.Close()

	sched, err := a.scheduler(d)
	if err != nil {
		return err
	}
	defer sched.Close()

	settingsCh := a.settings.Subscribe(4)
	defer a.settings.Unsubscribe(settingsCh)

	go func() {
		if err := a.settings.Watch(ctx); err != nil {
			a.logger.Warn("settings watch stopped", "error", err)
		}
	}()

	go sched.WatchSettings(ctx, settingsCh)

	slackCh := a.settings.Subscribe(4)
	defer a.settings.Unsubscribe(slackCh)

	go watchSlack(ctx, a, d, slackCh)

	authCh, cancelAuth := a.bus.Subscribe(4, eventbus.TopicLogin, eventbus.TopicLogout)
	defer cancelAuth()

	go sched.WatchAuth(ctx, authCh)

	statusCh, cancelStatus := a.bus.Subscribe(16, eventbus.TopicSchedulerStatus, eventbus.TopicSyncCompleted)
	defer cancelStatus()

	loginErr := a.requireLogin()

	switch {
	case loginErr == nil:
		sched.Start(ctx)
	case errors.Is(loginErr, errNotLoggedIn) && interactive:
		ctrl, err := a.controller()
		if err != nil {
			return err
		}

		// The login event starts the scheduler.
		if err := deviceLogin(ctx, a, ctrl); err != nil {
			return err
		}
	default:
		return loginErr
	}

	_, _ = fmt.Fprintf(os.Stdout, "Polling every %d minute(s). Press Ctrl+C to stop.\n", a.settings.Get().PollingIntervalMinutes)

	var last scheduler.State = -1

	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(os.Stdout, "\nStopping...")
			return nil
		case ev := <-statusCh:
			if res, ok := ev.Data.(scheduler.CycleResult); ok {
				_, _ = fmt.Fprintln(os.Stdout, formatSyncSummary(res, sched.Status()))
				continue
			}

			st, ok := ev.Data.(scheduler.Status)
			if !ok || st.State == last {
				continue
			}

			last = st.State

			if line := formatStatusLine(st); line != "" {
				_, _ = fmt.Fprintln(os.Stdout, line)
			}
		}
	}
}

// watchSlack re-registers the Slack sender when its settings change.
func watchSlack(ctx context.Context, a *app, d *notify.Dispatcher, ch <-chan config.Settings) {
	prev := a.settings.Get().Slack

	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-ch:
			if !ok {
				return
			}

			if slices.Equal(set.Slack.Repos, prev.Repos) &&
				set.Slack.WebhookURL == prev.WebhookURL && set.Slack.Channel == prev.Channel {
				continue
			}

			prev = set.Slack
			a.configureSlack(d, set)
		}
	}
}
