// internal/commands/guide.go
package aiplay

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/aiplay/internal/capability"
)

// guideCmd implements 'guide', which prints the setup guide or the remediation
// steps of one capability.
var guideCmd = &cobra.Command{
	Use:   "guide [capability]",
	Short: "Show how to enable the capabilities",
	Long:  `The 'guide' command prints the setup guide. Given a capability name it prints the steps that make that capability available.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		heading := color.New(color.FgCyan, color.Bold)
		if len(args) == 1 {
			name, err := capability.Parse(args[0])
			if err != nil {
				return err
			}
			heading.Fprintf(out, "Enabling %s\n", name.Title())
			for i, step := range capability.Remediation(name) {
				fmt.Fprintf(out, "  %d. %s\n", i+1, step)
			}
			return nil
		}
		for i, step := range capability.Guide() {
			heading.Fprintf(out, "Step %d: %s\n", i+1, step.Title)
			for _, item := range step.Items {
				fmt.Fprintf(out, "  - %s\n", item)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(guideCmd)
}
