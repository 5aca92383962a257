package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for all configuration keys.
func SetDefaults() {
	// Gateway
	viper.SetDefault("gateway.port", 8080)
	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.ui_dir", "")
	viper.SetDefault("gateway.rate_limit.enabled", true)
	viper.SetDefault("gateway.rate_limit.requests_per_minute", 60)
	viper.SetDefault("gateway.rate_limit.burst", 10)
	viper.SetDefault("gateway.rate_limit.cleanup_interval", 5*time.Minute)

	// Upstream agent engine
	viper.SetDefault("upstream.url", "wss://api.openai.com/v1/realtime")
	viper.SetDefault("upstream.model", "gpt-realtime")
	viper.SetDefault("upstream.handshake_timeout", 10*time.Second)

	// Transport
	viper.SetDefault("transport.queue_capacity", 16)
	viper.SetDefault("transport.close_timeout", 5*time.Second)
	viper.SetDefault("transport.sweep_interval", time.Minute)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")
}
