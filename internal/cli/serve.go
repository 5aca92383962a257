package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"switchboard/internal/config"
	"switchboard/internal/gateway"
	"switchboard/internal/tools"
	"switchboard/internal/transport"
	"switchboard/internal/upstream"
	"switchboard/pkg/logger"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the switchboard gateway server",
		Long: `Start the switchboard gateway server.

The server accepts browser chat connections over WebSocket, opens one
upstream engine session per connection, and relays messages between the two
sides until either disconnects.`,
		Example: `  # Start server with default configuration
  switchboard serve

  # Start server with custom port
  switchboard serve --port 9090

  # Start server with verbose logging
  switchboard serve --verbose`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8080
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}

	if cfg.Upstream.APIKey == "" {
		log.Warn().Msg("No upstream API key configured; run 'switchboard auth login' first")
	}

	// Base context for all session run loops. Cancelled on shutdown.
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := transport.NewRegistry()
	chat := transport.NewChatTransport(registry, transport.SessionOptions{
		Upstream: upstream.Config{
			URL:    cfg.Upstream.URL,
			APIKey: cfg.Upstream.APIKey,
			Model:  cfg.Upstream.Model,
		},
		HandshakeTimeout: cfg.Upstream.HandshakeTimeout,
		QueueCapacity:    cfg.Transport.QueueCapacity,
		CloseTimeout:     cfg.Transport.CloseTimeout,
		Tools:            tools.NewBuiltinRegistry(),
	})
	chat.SetBaseContext(baseCtx)

	srv := gateway.NewServer(cfg, chat, Version)

	sweeper := transport.NewSweeper(registry, cfg.Transport.SweepInterval, 0)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Watch the config file so log level changes apply without a restart.
	if cliCtx.ConfigPath != "" {
		if _, err := os.Stat(cliCtx.ConfigPath); err == nil {
			watcher, err := gateway.NewWatcher(func(path string) {
				reloaded, err := config.Load(path)
				if err != nil {
					log.Warn().Err(err).Msg("Config reload failed")
					return
				}
				if err := logger.SetLevel(reloaded.Log.Level); err != nil {
					log.Warn().Err(err).Str("level", reloaded.Log.Level).Msg("Invalid log level in config")
					return
				}
				log.Info().Str("level", reloaded.Log.Level).Msg("Applied config changes")
			}, cliCtx.ConfigPath)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to create config watcher")
			} else if err := watcher.Start(); err != nil {
				log.Warn().Err(err).Msg("Failed to start config watcher")
			} else {
				srv.SetWatcher(watcher)
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)).
		Str("upstream", cfg.Upstream.URL).
		Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	}

	// Stop starting new session work, then drain.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
