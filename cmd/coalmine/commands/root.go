// Package commands implements the coalmine server's cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "coalmine",
		Short:   "A dead-man's-switch canary monitor",
		Version: version,
		Long: `coalmine watches for canaries: scheduled check-ins that external jobs
are expected to ping before a deadline. A canary that misses its deadline
goes late and triggers a notification; a late canary that finally reports
recovers automatically.`,
	}

	root.AddCommand(newServeCmd())

	root.PersistentFlags().StringP("config", "c", "coalmine.yaml", "path to the config file")
	return root
}
