// Package config provides configuration management for walletlink.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/walletlink/internal/fileutil"
)

// Config represents the application configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Home       string           `yaml:"home"`
	Provider   ProviderConfig   `yaml:"provider"`
	Connection ConnectionConfig `yaml:"connection"`
	Networks   NetworksConfig   `yaml:"networks"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ProviderConfig defines how the wallet provider is located and called.
type ProviderConfig struct {
	Kind                  string  `yaml:"kind"`
	URL                   string  `yaml:"url"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	RateLimit             float64 `yaml:"rate_limit"`
	Burst                 int     `yaml:"burst"`
}

// ConnectionConfig defines connection lifecycle settings.
type ConnectionConfig struct {
	AutoConnect          bool `yaml:"auto_connect"`
	AutoReconnect        bool `yaml:"auto_reconnect"`
	MaxReconnectAttempts int  `yaml:"max_reconnect_attempts"`
	ReconnectDelayMillis int  `yaml:"reconnect_delay_ms"`
	PollIntervalSeconds  int  `yaml:"poll_interval_seconds"`
}

// NetworksConfig defines the known networks and the default one.
type NetworksConfig struct {
	Default string          `yaml:"default"`
	Custom  []NetworkConfig `yaml:"custom,omitempty"`
}

// NetworkConfig defines a network that can be switched to by name.
type NetworkConfig struct {
	Name          string `yaml:"name" json:"name"`
	ChainID       string `yaml:"chain_id" json:"chain_id"`
	RPCURL        string `yaml:"rpc_url,omitempty" json:"rpc_url,omitempty"`
	BlockExplorer string `yaml:"block_explorer,omitempty" json:"block_explorer,omitempty"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to path, replacing any existing file atomically.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600, 0o750)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the walletlink home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetProviderURL returns the wallet provider endpoint.
func (c *Config) GetProviderURL() string {
	return c.Provider.URL
}

// GetWalletKind returns the configured wallet adapter family.
func (c *Config) GetWalletKind() string {
	return c.Provider.Kind
}

// RequestTimeout returns the per-request provider timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Provider.RequestTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the base reconnection backoff delay.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Connection.ReconnectDelayMillis) * time.Millisecond
}

// PollInterval returns the liveness poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Connection.PollIntervalSeconds) * time.Second
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default walletlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletlink"
	}
	return filepath.Join(home, ".walletlink")
}
