package cli

import (
	"github.com/rs/zerolog"

	"switchboard/internal/config"
	"switchboard/pkg/logger"
)

// CLIContext carries the loaded configuration and logger for subcommands.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger
	Verbose    bool
	Quiet      bool
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
		Verbose:    verbose,
		Quiet:      quiet,
	}
}

// Close releases resources held by the context.
func (c *CLIContext) Close() error {
	return logger.Close()
}

// Log returns the context logger, falling back to the global one.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
