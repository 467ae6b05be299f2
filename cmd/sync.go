package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/inovacc/ghnotify/internal/scheduler"
	"github.com/spf13/cobra"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Poll GitHub notifications once",
	Long: `Run a single sync cycle: fetch notifications, show alerts for new or updated
threads and update the local cache.

While notifications are paused nothing is fetched unless --force is given.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Sync even when notifications are paused")
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}

	d := a.dispatcher()

	sched, err := a.scheduler(d)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	res, err := sched.SyncNow(ctx, syncForce)
	if errors.Is(err, scheduler.ErrPaused) {
		_, _ = fmt.Fprintln(os.Stdout, "Notifications are paused. Use --force to sync anyway.")
		return nil
	}

	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	d.Wait()

	_, _ = fmt.Fprintln(os.Stdout, formatCycle(res))

	return nil
}
