package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored GitHub token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl, err := a.controller()
		if err != nil {
			return err
		}

		if err := ctrl.Logout(); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "✓ Logged out")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
