package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/connection"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/wallet"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Log       *config.Logger
	Formatter *output.Formatter
	Detector  provider.Detector
}

// NewCommandContext creates a context whose provider detector dials the
// configured node.
func NewCommandContext(c *config.Config, l *config.Logger, f *output.Formatter) *CommandContext {
	if l == nil {
		l = config.NullLogger()
	}
	return &CommandContext{
		Cfg:       c,
		Log:       l,
		Formatter: f,
		Detector:  nodeDetector(c, l),
	}
}

// WithDetector replaces the provider detector.
func (c *CommandContext) WithDetector(d provider.Detector) *CommandContext {
	c.Detector = d
	return c
}

func nodeDetector(c *config.Config, l *config.Logger) provider.Detector {
	nc := provider.NodeConfig{
		URL:            c.Provider.URL,
		RequestTimeout: c.RequestTimeout(),
		Logger:         l.Named("provider"),
	}
	if c.Provider.RateLimit > 0 {
		nc.Limiter = provider.NewRateLimiter(c.Provider.RateLimit, c.Provider.Burst)
	}
	return provider.NodeDetector{Config: nc}
}

// Networks returns the built-in presets merged with the configured custom networks.
func (c *CommandContext) Networks() (*wallet.Networks, error) {
	return configuredNetworks(c.Cfg)
}

func configuredNetworks(c *config.Config) (*wallet.Networks, error) {
	extra := make([]wallet.Network, 0, len(c.Networks.Custom))
	for _, n := range c.Networks.Custom {
		extra = append(extra, wallet.Network{
			Key:           strings.ToLower(strings.TrimSpace(n.Name)),
			Name:          n.Name,
			ChainID:       n.ChainID,
			RPCURL:        n.RPCURL,
			BlockExplorer: n.BlockExplorer,
		})
	}
	return wallet.NewNetworks(extra...)
}

// ManagerConfig maps the connection settings onto the manager configuration.
func (c *CommandContext) ManagerConfig() connection.Config {
	return connection.Config{
		AutoConnect:          c.Cfg.Connection.AutoConnect,
		AutoReconnect:        c.Cfg.Connection.AutoReconnect,
		MaxReconnectAttempts: c.Cfg.Connection.MaxReconnectAttempts,
		ReconnectDelay:       c.Cfg.ReconnectDelay(),
		PollInterval:         c.Cfg.PollInterval(),
	}
}

// NewManager validates the configuration and builds a connection manager
// with no adapter. The caller owns it and must Close it.
func (c *CommandContext) NewManager() (*connection.Manager, *wallet.Networks, error) {
	if err := c.Cfg.Validate(); err != nil {
		return nil, nil, err
	}
	networks, err := c.Networks()
	if err != nil {
		return nil, nil, err
	}
	m := connection.New(c.ManagerConfig(), c.Detector,
		connection.WithLogger(c.Log.Named("connection")),
		connection.WithNetworks(networks),
	)
	return m, networks, nil
}

// commandTimeout derives a context for one command run from the command's
// context. A non-positive d leaves the run bounded only by cancellation.
func commandTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
