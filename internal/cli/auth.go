package cli

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"switchboard/internal/config"
)

// NewAuthCmd creates the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage the upstream engine API key.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Configure the upstream API key",
		Long: `Store the API key used to authenticate against the realtime agent
engine. The key is written to the switchboard configuration file.`,
		Example: `  # Interactive login (recommended)
  switchboard auth login

  # Provide key directly
  switchboard auth login --key sk-xxxxx`,
		RunE: runAuthLogin,
	}

	cmd.Flags().StringP("key", "k", "", "API key (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the upstream API key",
		Long:  `Remove the stored API key from the switchboard configuration.`,
		RunE:  runAuthLogout,
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		Long:  `Display the current upstream authentication status.`,
		RunE:  runAuthStatus,
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	key, _ := cmd.Flags().GetString("key")

	if key == "" {
		fmt.Println("Upstream Engine Authentication")
		fmt.Println("------------------------------")
		fmt.Println("")
		fmt.Printf("Engine URL: %s\n", cfg.Upstream.URL)
		fmt.Println("")
		fmt.Print("Enter your API key: ")

		// Read key securely (hidden input)
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key = strings.TrimSpace(string(keyBytes))
		fmt.Println() // New line after hidden input
	}

	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	cfg.Upstream.APIKey = key

	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := config.SaveTo(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("")
	fmt.Println("✓ API key saved successfully!")
	fmt.Println("")
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println("")
	fmt.Println("You can now start the server with: switchboard serve")

	log.Info().Msg("Upstream API key configured")

	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if cfg.Upstream.APIKey == "" {
		fmt.Println("No API key configured.")
		return nil
	}

	cfg.Upstream.APIKey = ""

	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := config.SaveTo(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("✓ API key removed successfully!")
	log.Info().Msg("Upstream API key cleared")

	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config

	fmt.Println("Authentication Status")
	fmt.Println("--------------------")
	fmt.Println("")

	if cfg.Upstream.APIKey == "" {
		fmt.Println("Status: ❌ Not authenticated")
		fmt.Println("")
		fmt.Println("Run 'switchboard auth login' to configure an API key.")
		return nil
	}

	fmt.Println("Status: ✓ API key configured")
	fmt.Printf("Key:    %s\n", maskKey(cfg.Upstream.APIKey))
	fmt.Printf("URL:    %s\n", cfg.Upstream.URL)
	fmt.Printf("Model:  %s\n", cfg.Upstream.Model)
	fmt.Println("")
	fmt.Println("You can start the server with: switchboard serve")

	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
