package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"switchboard/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize switchboard configuration",
		Long: `Create the configuration directory and write a config file populated
with default values. Existing configuration is left untouched unless --force
is given.`,
		Example: `  # Create ~/.switchboard/config.yaml with defaults
  switchboard init

  # Overwrite an existing config file
  switchboard init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Printf("Config file already exists: %s\n", configPath)
		fmt.Println("Use --force to overwrite it.")
		return nil
	}

	// The loaded config already carries defaults plus any env overrides.
	if err := config.SaveTo(cliCtx.Config, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'switchboard auth login' to store your upstream API key")
	fmt.Println("  2. Run 'switchboard serve' to start the gateway")

	return nil
}
