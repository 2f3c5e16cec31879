// internal/commands/ui.go
package aiplay

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/aiplay/internal/tui"
)

// startTUI is a function alias to tui.Start for starting the interactive playground.
var startTUI = tui.Start

// uiCmd implements 'ui', which opens the interactive playground.
var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive playground",
	Long:  `The 'ui' command opens the terminal playground with one page per capability and the setup guide.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		ctx, stop := interruptContext(cmd)
		defer stop()

		provider, err := newProvider(cfg)
		if err != nil {
			return fmt.Errorf("initialize provider: %w", err)
		}
		defer closeProvider(provider)
		return startTUI(ctx, cfg, provider)
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
