package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login, cache and rate limit status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		set := a.settings.Get()

		_, _ = fmt.Fprintln(os.Stdout, headerStyle.Render("ghnotify status"))
		_, _ = fmt.Fprintln(os.Stdout)

		loggedIn := a.requireLogin() == nil
		_, _ = fmt.Fprintf(os.Stdout, "  Logged in:     %s\n", yesNo(loggedIn))
		_, _ = fmt.Fprintf(os.Stdout, "  Interval:      %d minute(s)\n", set.PollingIntervalMinutes)
		_, _ = fmt.Fprintf(os.Stdout, "  Scope:         %s\n", participationLabel(set.ParticipatingOnly))
		_, _ = fmt.Fprintf(os.Stdout, "  Paused:        %s\n", yesNo(set.NotificationsPaused))
		_, _ = fmt.Fprintf(os.Stdout, "  Sound:         %s\n", yesNo(set.SoundEnabled))
		_, _ = fmt.Fprintf(os.Stdout, "  Storage:       %s\n", set.Storage.Driver)

		store, err := a.openStore()
		if err != nil {
			return err
		}

		cache, err := summarize(store)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "  Last sync:     %s\n", formatTime(cache.LastSyncAt))
		_, _ = fmt.Fprintf(os.Stdout, "  Seen threads:  %d\n", cache.SeenThreads)

		if !loggedIn {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		rl, err := a.client.RateLimits(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stdout, "  Rate limit:    %s\n", dimStyle.Render("unavailable"))
			a.logger.Debug("rate limit lookup failed", "error", err)

			return nil
		}

		_, _ = fmt.Fprintf(os.Stdout, "  Rate limit:    %s\n", formatQuota(&rl))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
