// Package app provides the entry point for the stackpilot-mcp command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "stackpilot-mcp",
	DisableAutoGenTag: true,
	Short:             "MCP agent for deploying applications on StackPilot",
	Long: `stackpilot-mcp is an MCP (Model Context Protocol) server that lets an AI
assistant deploy and manage applications on a StackPilot organization.

It exposes tools to authenticate, list servers and applications, deploy from
git or from a local directory, and follow deployment runs. Applications may
live on any of the organization's backend servers; the agent discovers and
caches which server owns which application.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Re-initialize after flag parsing so --debug takes effect.
		logger.Initialize()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the stackpilot-mcp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
