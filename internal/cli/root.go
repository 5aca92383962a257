// Package cli implements the switchboard command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"switchboard/internal/config"
	"switchboard/pkg/logger"
)

// GlobalFlags holds flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

type contextKey struct{}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Switchboard - realtime chat gateway",
		Long: `Switchboard bridges browser chat sessions to a realtime agent engine.
It terminates WebSocket connections from web clients, multiplexes them into
independent upstream sessions, and streams agent responses back as they are
produced.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for version and help
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logLevel := cfg.Log.Level
			if globalFlags.Verbose {
				logLevel = "debug"
			}
			if globalFlags.Quiet {
				logLevel = "error"
			}

			if err := logger.Init(logger.LogConfig{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			cliCtx := NewCLIContext(cfg, configPath, logger.Get(), globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cliCtx := GetCLIContext(cmd); cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewAuthCmd())

	return rootCmd
}

// GetCLIContext retrieves the CLI context from the command context.
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}
