package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome                 = "WALLETLINK_HOME"
	EnvProviderURL          = "WALLETLINK_PROVIDER_URL"
	EnvWalletKind           = "WALLETLINK_WALLET_KIND"
	EnvAutoConnect          = "WALLETLINK_AUTO_CONNECT"
	EnvAutoReconnect        = "WALLETLINK_AUTO_RECONNECT"
	EnvMaxReconnectAttempts = "WALLETLINK_MAX_RECONNECT_ATTEMPTS"
	EnvOutputFormat         = "WALLETLINK_OUTPUT_FORMAT"
	EnvVerbose              = "WALLETLINK_VERBOSE"
	EnvLogLevel             = "WALLETLINK_LOG_LEVEL"
	EnvNoColor              = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvProviderURL); v != "" {
		cfg.Provider.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvWalletKind); v != "" {
		cfg.Provider.Kind = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvAutoConnect); v != "" {
		cfg.Connection.AutoConnect = parseBool(v)
	}

	if v := os.Getenv(EnvAutoReconnect); v != "" {
		cfg.Connection.AutoReconnect = parseBool(v)
	}

	if v := os.Getenv(EnvMaxReconnectAttempts); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.Connection.MaxReconnectAttempts = n
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided provider URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
