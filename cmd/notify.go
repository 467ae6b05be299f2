package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage alert delivery",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test alert through every configured sender",
	Long: `Send a test alert to the console and, when a Slack webhook is configured,
to Slack. Use this to check the Slack settings before running the poller.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		d := a.dispatcher()
		if !d.HasSenders() {
			return errors.New("no senders configured")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		var failed int

		for _, s := range d.Senders() {
			if err := s.Test(ctx); err != nil {
				failed++

				_, _ = fmt.Fprintf(os.Stdout, "%s %s: %v\n", errorStyle.Render("✗"), s.Name(), err)

				continue
			}

			_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", successStyle.Render("✓"), s.Name())
		}

		if failed > 0 {
			return fmt.Errorf("%d sender(s) failed", failed)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}
