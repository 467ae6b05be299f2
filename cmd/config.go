package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/inovacc/ghnotify/internal/config"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change settings stored in settings.yaml.

A running "ghnotify run" picks up changes immediately.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		set := a.settings.Get()

		data, err := yaml.Marshal(&set)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprint(os.Stdout, string(data))

		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Example: `  ghnotify config set polling_interval_minutes 10
  ghnotify config set notifications_paused true
  ghnotify config set slack.repos "octo/*,acme/api"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.settings.Set(args[0], args[1]); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "✓ %s = %s\n", args[0], args[1])

		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings (keeps the client ID)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.settings.Reset(); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(os.Stdout, "✓ Settings reset to defaults")

		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, _ = fmt.Fprintln(os.Stdout, a.settings.Path())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configResetCmd, configPathCmd)
}
