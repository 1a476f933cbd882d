// Package cmd defines the command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugFlag  bool
)

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "notifier",
		Short: "Multi-channel notification service with ERP integration",
		Long: `notifier delivers platform notifications across in-app, email, SMS and
push channels with per-user preference filtering, and ingests approval-state
changes from Odoo through a signed webhook and a polling sync worker.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	root.AddCommand(newServeCommand())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
