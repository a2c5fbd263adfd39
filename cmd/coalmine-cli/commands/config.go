package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opswatch/coalmine/cmd/coalmine-cli/cliconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the CLI's own persistent settings",
	}
	cmd.AddCommand(newConfigSetCmd(), newConfigShowCmd())
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var host string
	var port int
	var authKey string
	var useKeyring bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write host/port/auth-key settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadCLIConfig(cmd)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if authKey != "" {
				if useKeyring {
					if err := cfg.StoreAuthKeyInKeyring(authKey); err != nil {
						return err
					}
				} else {
					cfg.AuthKey = authKey
					cfg.UseKeyring = false
				}
			}
			if err := cliconfig.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("config saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "server host")
	cmd.Flags().IntVar(&port, "port", 0, "server port")
	cmd.Flags().StringVar(&authKey, "auth-key", "", "shared auth key")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "store the auth key in the OS keyring instead of the config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved CLI config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadCLIConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Printf("config file: %s\n", path)
			fmt.Printf("host: %s\n", cfg.Host)
			fmt.Printf("port: %d\n", cfg.Port)
			fmt.Printf("auth key source: %s\n", authKeySource(cfg))
			return nil
		},
	}
}

func authKeySource(cfg *cliconfig.Config) string {
	switch {
	case cfg.UseKeyring:
		return "OS keyring"
	case cfg.AuthKey != "":
		return "config file (plaintext)"
	default:
		return "none"
	}
}
