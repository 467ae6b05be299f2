package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated GitHub account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireLogin(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		acct, err := a.client.CurrentUser(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "%s\n", headerStyle.Render(acct.Login))

		if acct.Name != "" {
			_, _ = fmt.Fprintf(os.Stdout, "  Name:    %s\n", acct.Name)
		}

		if acct.Email != "" {
			_, _ = fmt.Fprintf(os.Stdout, "  Email:   %s\n", acct.Email)
		}

		if acct.HTMLURL != "" {
			_, _ = fmt.Fprintf(os.Stdout, "  Profile: %s\n", acct.HTMLURL)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
