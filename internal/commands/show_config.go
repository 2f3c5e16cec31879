// internal/commands/show_config.go
package aiplay

import (
	"errors"
	"io/fs"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/metrics"
)

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overridden by flags accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		fallback := appconfig.Config{
			Debug:          viper.GetBool("debug"),
			Stream:         viper.GetBool("stream"),
			Metrics:        viper.GetBool("metrics"),
			DebounceMs:     viper.GetInt("debounceMs"),
			TimeoutSeconds: viper.GetInt("timeout"),
			LogFile:        viper.GetString("logFile"),
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), GetConfig(), fallback)
		if DebugEnabled() && GetConfig() != nil {
			pp.Fprintln(cmd.OutOrStdout(), *GetConfig())
		}
	},
}

// showMetricsCmd implements 'show metrics', which summarizes the recorded invocation metrics.
var showMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show recorded invocation metrics",
	Long:  `The 'metrics' subcommand prints per-capability invocation counts, time to first chunk and latency recorded with --metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := metrics.Load(GetConfig().MetricsFilePath())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		metrics.Render(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd, showMetricsCmd)
}
