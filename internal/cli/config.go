package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"switchboard/internal/config"
)

// Sensitive configuration keys are masked in listings.
var sensitiveKeys = map[string]bool{
	"upstream.api_key": true,
}

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "Get, set, and list configuration values",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := config.Get(key)

			if value == nil {
				return fmt.Errorf("key not found: %s", key)
			}

			fmt.Println(value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			if err := config.Set(key, value); err != nil {
				return fmt.Errorf("set config: %w", err)
			}

			fmt.Printf("Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := viper.AllSettings()
			keys := flattenSettings("", settings)
			sort.Strings(keys)

			for _, key := range keys {
				value := viper.Get(key)

				if sensitiveKeys[key] && !showAll {
					if s, ok := value.(string); ok && s != "" {
						value = maskKey(s)
					}
				}

				fmt.Printf("%s = %v\n", key, value)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showAll, "all", false, "show sensitive values")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			path := cliCtx.ConfigPath
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			fmt.Println(path)
			return nil
		},
	}
}

// flattenSettings collapses nested settings maps into dotted keys.
func flattenSettings(prefix string, settings map[string]any) []string {
	var keys []string
	for k, v := range settings {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flattenSettings(key, nested)...)
		} else {
			keys = append(keys, key)
		}
	}
	return keys
}
