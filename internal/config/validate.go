package config

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// MaxReconnectAttemptsLimit bounds connection.max_reconnect_attempts.
const MaxReconnectAttemptsLimit = 20

// Validate checks the configuration for values the connection manager cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.URL) == "" {
		return invalid("provider.url", "must not be empty")
	}
	if c.Provider.RequestTimeoutSeconds < 0 {
		return invalid("provider.request_timeout_seconds", "must not be negative")
	}
	if c.Provider.RateLimit < 0 {
		return invalid("provider.rate_limit", "must not be negative")
	}
	if c.Provider.RateLimit > 0 && c.Provider.Burst < 1 {
		return invalid("provider.burst", "must be at least 1 when rate_limit is set")
	}

	if c.Connection.MaxReconnectAttempts < 0 || c.Connection.MaxReconnectAttempts > MaxReconnectAttemptsLimit {
		return invalid("connection.max_reconnect_attempts", "must be between 0 and "+strconv.Itoa(MaxReconnectAttemptsLimit))
	}
	if c.Connection.AutoReconnect && c.Connection.ReconnectDelayMillis <= 0 {
		return invalid("connection.reconnect_delay_ms", "must be positive when auto_reconnect is enabled")
	}
	if c.Connection.PollIntervalSeconds < 0 {
		return invalid("connection.poll_interval_seconds", "must not be negative")
	}

	for i, n := range c.Networks.Custom {
		key := "networks.custom[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(n.Name) == "" {
			return invalid(key+".name", "must not be empty")
		}
		if _, err := hexutil.DecodeUint64(n.ChainID); err != nil {
			return invalid(key+".chain_id", "must be a 0x-prefixed hex chain ID")
		}
	}

	return nil
}

func invalid(key, reason string) error {
	return linkerr.WithDetails(linkerr.ErrConfigInvalid, map[string]string{
		"key":    key,
		"reason": reason,
	})
}
