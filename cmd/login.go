package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/inovacc/ghnotify/internal/auth"
	"github.com/spf13/cobra"
)

var (
	loginClientID string
	loginScope    string
	loginImport   bool
	loginToken    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize ghnotify with GitHub",
	Long: `Authorize ghnotify to read your GitHub notifications.

By default this starts an OAuth device flow where you:
1. Copy the displayed code
2. Open the GitHub URL in your browser
3. Paste the code and authorize the app

The device flow needs the client ID of a GitHub OAuth app with device flow
enabled. Pass it with --client-id once and it is saved to the settings.

Alternatively, --import copies an existing token from GITHUB_TOKEN, GH_TOKEN
or the gh CLI, and --token stores the given token directly.

The token is stored in your system keyring.

Examples:
  ghnotify login --client-id Iv1.0123456789abcdef
  ghnotify login --import
  ghnotify login --token ghp_xxxxxxxxxxxx`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "OAuth app client ID (saved to settings)")
	loginCmd.Flags().StringVar(&loginScope, "scope", "", "OAuth scopes (default from settings)")
	loginCmd.Flags().BoolVar(&loginImport, "import", false, "Import an existing token from the environment or gh CLI")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Personal access token to store (skip the device flow)")

	loginCmd.MarkFlagsMutuallyExclusive("import", "token")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl, err := a.controller()
	if err != nil {
		return err
	}

	if loginImport || loginToken != "" {
		return importToken(cmd.Context(), a, ctrl)
	}

	if loginClientID != "" {
		if _, err := a.settings.Set("client_id", loginClientID); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := deviceLogin(ctx, a, ctrl); err != nil {
		return err
	}

	printAccount(ctx, a)

	return nil
}

func importToken(ctx context.Context, a *app, ctrl *auth.Controller) error {
	r := auth.NewResolver()
	if loginToken != "" {
		r.WithFlagValue(loginToken)
	} else {
		r.WithEnvs("GITHUB_TOKEN", "GH_TOKEN").WithGitHubCLI(a.ghHost())
	}

	res, err := r.Resolve()
	if err != nil {
		return err
	}

	if err := ctrl.Adopt(res.Token, res.Name); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✓ Token imported from %s\n", res.Name)

	printAccount(ctx, a)

	return nil
}

// deviceLogin runs the device flow to completion, printing the user code.
func deviceLogin(ctx context.Context, a *app, ctrl *auth.Controller) error {
	set := a.settings.Get()

	scope := loginScope
	if scope == "" {
		scope = set.Scope
	}

	if set.ClientID == "" {
		return errors.New("no OAuth client ID configured; pass --client-id or run 'ghnotify config set client_id <id>'")
	}

	da, err := ctrl.StartFlow(ctx, set.ClientID, scope)
	if err != nil {
		return fmt.Errorf("failed to start device flow: %w", err)
	}

	_, _ = fmt.Fprintln(os.Stdout)
	_, _ = fmt.Fprintf(os.Stdout, "First, copy your one-time code: %s\n", highlightStyle.Render(da.UserCode))
	_, _ = fmt.Fprintf(os.Stdout, "Then open: %s\n", da.VerificationURI)
	_, _ = fmt.Fprintf(os.Stdout, "Waiting for authorization (expires in %s)...\n", time.Duration(da.ExpiresIn)*time.Second)

	if err := ctrl.BeginPolling(set.ClientID); err != nil {
		return err
	}

	st, err := ctrl.Wait(ctx)
	if ctx.Err() != nil {
		ctrl.Cancel()
		return errors.New("login cancelled")
	}

	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if st.State != auth.StateSucceeded {
		return fmt.Errorf("authorization ended in state %s", st.State)
	}

	_, _ = fmt.Fprintln(os.Stdout, successStyle.Render("✓ Authentication successful!"))

	return nil
}

func printAccount(ctx context.Context, a *app) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	acct, err := a.client.CurrentUser(ctx)
	if err != nil {
		a.logger.Debug("could not fetch current user", "error", err)
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "Logged in as %s\n", acct.Login)
}
