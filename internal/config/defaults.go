package config

// DefaultProviderURL is the default wallet provider endpoint.
// A local development node (Hardhat/Anvil) exposing its unlocked accounts.
const DefaultProviderURL = "http://localhost:8545"

// DefaultWalletKind is the default wallet adapter family.
const DefaultWalletKind = "injected"

// DefaultNetwork is the network selected when none is given.
const DefaultNetwork = "localhost"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.walletlink",
		Provider: ProviderConfig{
			Kind:                  DefaultWalletKind,
			URL:                   DefaultProviderURL,
			RequestTimeoutSeconds: 30,
			RateLimit:             5,
			Burst:                 10,
		},
		Connection: ConnectionConfig{
			AutoConnect:          false,
			AutoReconnect:        true,
			MaxReconnectAttempts: 3,
			ReconnectDelayMillis: 2000,
			PollIntervalSeconds:  10,
		},
		Networks: NetworksConfig{
			Default: DefaultNetwork,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.walletlink/walletlink.log",
		},
	}
}
