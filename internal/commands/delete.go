// internal/commands/delete.go
package aiplay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

// deleteCmd represents the 'delete' command group for deleting resources.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Group commands for deleting resources",
	Long:  `The 'delete' command groups subcommands that delete resources or information related to aiplay.`,
}

// deleteMetricsCmd implements 'delete metrics', which removes the persisted metrics file.
var deleteMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Delete recorded invocation metrics",
	Long:  `The 'metrics' subcommand removes the metrics file so recording starts from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := GetConfig().MetricsFilePath()
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No metrics recorded yet.")
				return nil
			}
			return fmt.Errorf("delete metrics: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
		return nil
	},
}

func init() {
	deleteCmd.AddCommand(deleteMetricsCmd)
	rootCmd.AddCommand(deleteCmd)
}
