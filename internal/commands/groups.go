// internal/commands/groups.go
package aiplay

import (
	"github.com/spf13/cobra"
)

// listCmd represents the 'list' command group for listing resources.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Group commands for listing resources",
	Long:  `The 'list' command groups subcommands that list resources on the configured hosts.`,
}

// showCmd represents the 'show' command group for displaying information.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Group commands for showing information",
	Long:  `The 'show' command groups subcommands that display configuration and recorded metrics.`,
}

// pullCmd represents the 'pull' command group for downloading resources.
var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Group commands for downloading resources",
	Long:  `The 'pull' command groups subcommands that download models to the configured hosts.`,
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, pullCmd)
}
