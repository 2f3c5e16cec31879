// internal/commands/models_list.go
package aiplay

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/aiplay/internal/models"
)

// listModelsCmd implements 'list models', which enumerates the models each
// configured host serves and marks the loaded ones.
var listModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List all models on each host",
	Long:  `The 'models' subcommand lists all models on each host specified in the configuration file (default: config/config.json).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return models.ListModels(cmd.Context(), GetConfig(), cmd.OutOrStdout())
	},
}

// pullModelsCmd implements 'pull models', which downloads every configured model
// ahead of time so pages do not wait for a download.
var pullModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Download all configured models",
	Long:  `The 'models' subcommand downloads every model listed in the configuration file on every host that supports downloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptContext(cmd)
		defer stop()
		return models.PullModels(ctx, GetConfig(), cmd.OutOrStdout())
	},
}

func init() {
	listCmd.AddCommand(listModelsCmd)
	pullCmd.AddCommand(pullModelsCmd)
}
