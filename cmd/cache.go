package cmd

import (
	"fmt"
	"os"

	"github.com/inovacc/ghnotify/internal/database"
	"github.com/inovacc/ghnotify/internal/dedup"
	"github.com/inovacc/ghnotify/internal/encoding"
	"github.com/spf13/cobra"
)

var (
	cacheClearYes bool
	cacheOutput   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the local notification cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every delivered thread and the sync validator",
	Long: `Remove all cached state. The next sync fetches the full collection and
every unread thread is shown again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearYes && !promptConfirm("Clear the notification cache? [y/N]: ") {
			_, _ = fmt.Fprintln(os.Stdout, "Cancelled.")
			return nil
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.openStore()
		if err != nil {
			return err
		}

		if err := dedup.New(store).Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "✓ Cache cleared")

		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print a JSON summary of the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.openStore()
		if err != nil {
			return err
		}

		sum, err := summarize(store)
		if err != nil {
			return err
		}

		if cacheOutput == "" {
			data, err := encoding.ToJSONIndent(sum)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(os.Stdout, string(data))

			return nil
		}

		if err := encoding.SaveJSON(cacheOutput, sum); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "✓ Cache summary written to %s\n", cacheOutput)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd, cacheExportCmd)

	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "Skip the confirmation prompt")
	cacheExportCmd.Flags().StringVarP(&cacheOutput, "output", "o", "", "Write to a file instead of stdout")
}

func summarize(store database.Store) (database.Summary, error) {
	sum, err := dedup.New(store).Summary()
	if err != nil {
		return database.Summary{}, fmt.Errorf("failed to read cache: %w", err)
	}

	return sum, nil
}
