// Package config provides configuration loading and persistence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"switchboard/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	Version   string           `mapstructure:"version" yaml:"version"`
	Gateway   GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Upstream  UpstreamConfig   `mapstructure:"upstream" yaml:"upstream"`
	Transport TransportConfig  `mapstructure:"transport" yaml:"transport"`
	Log       logger.LogConfig `mapstructure:"log" yaml:"log"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Port      int             `mapstructure:"port" yaml:"port"`
	Host      string          `mapstructure:"host" yaml:"host"`
	UIDir     string          `mapstructure:"ui_dir" yaml:"ui_dir"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// UpstreamConfig configures the realtime agent engine connection.
type UpstreamConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	Model            string        `mapstructure:"model" yaml:"model"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
}

// TransportConfig configures per-session transport behavior.
type TransportConfig struct {
	// QueueCapacity bounds the inbound message queue held while the
	// upstream handshake is in flight. Oldest entries are dropped on
	// overflow.
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	// CloseTimeout bounds how long a session waits for both handles to
	// finish closing before it is finalized anyway.
	CloseTimeout time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	// SweepInterval is the cron interval for the registry sweeper.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

var (
	mu           sync.RWMutex
	globalConfig *Config
	configPath   string
)

// Load reads configuration from the given path, applying defaults and
// SWITCHBOARD_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("SWITCHBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigParseError); ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the currently loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Get returns the value for a dotted configuration key.
func Get(key string) any {
	mu.RLock()
	defer mu.RUnlock()
	return viper.Get(key)
}

// Set updates a dotted configuration key, re-resolves the typed config, and
// persists it to the loaded config file.
func Set(key, value string) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return err
	}
	globalConfig = &cfg

	if configPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = path
	}

	return SaveTo(&cfg, configPath)
}

// SaveTo serializes the configuration to YAML at the given path.
func SaveTo(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600: the file holds the upstream API key.
	return os.WriteFile(path, data, 0600)
}

// Reset clears global configuration state. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
