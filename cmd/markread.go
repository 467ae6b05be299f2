package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var markReadCmd = &cobra.Command{
	Use:   "mark-read <thread-id>...",
	Short: "Mark notification threads as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireLogin(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		var failed int

		for _, id := range args {
			if err := a.client.MarkThreadRead(ctx, id); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "✗ %s: %v\n", id, err)
				failed++

				continue
			}

			_, _ = fmt.Fprintf(os.Stdout, "✓ %s marked as read\n", id)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d thread(s) could not be marked as read", failed, len(args))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(markReadCmd)
}
