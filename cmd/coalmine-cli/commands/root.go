// Package commands implements the coalmine-cli command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opswatch/coalmine/cmd/coalmine-cli/cliconfig"
	"github.com/opswatch/coalmine/cmd/coalmine-cli/client"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "coalmine-cli",
		Short:   "Operate a coalmine canary server",
		Version: version,
	}

	root.AddCommand(
		newCreateCmd(),
		newGetCmd(),
		newListCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newTriggerCmd(),
		newPauseCmd(),
		newUnpauseCmd(),
		newConfigCmd(),
		newConsoleCmd(),
	)

	root.PersistentFlags().String("host", "", "server host (overrides the config file)")
	root.PersistentFlags().Int("port", 0, "server port (overrides the config file)")
	root.PersistentFlags().String("config", "", "path to the CLI config file")
	return root
}

// newClient builds a client.Client from the persistent config, applying
// any --host/--port overrides.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, _, err := loadCLIConfig(cmd)
	if err != nil {
		return nil, err
	}
	host, _ := cmd.Flags().GetString("host")
	if host != "" {
		cfg.Host = host
	}
	port, _ := cmd.Flags().GetInt("port")
	if port != 0 {
		cfg.Port = port
	}
	return client.New(cfg.Host, cfg.Port, cfg.ResolveAuthKey()), nil
}

func loadCLIConfig(cmd *cobra.Command) (*cliconfig.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = cliconfig.DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolving default config path: %w", err)
		}
	}
	cfg, err := cliconfig.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
