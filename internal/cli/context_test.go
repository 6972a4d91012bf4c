package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/provider/providertest"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

func TestNewCommandContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  *config.Logger
	}{
		{"with logger", config.NullLogger()},
		{"nil logger", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := config.Defaults()
			f := output.NewFormatter(output.FormatText, &bytes.Buffer{})

			ctx := NewCommandContext(c, tc.log, f)
			assert.Same(t, c, ctx.Cfg)
			assert.Same(t, f, ctx.Formatter)
			assert.NotNil(t, ctx.Log)

			nd, ok := ctx.Detector.(provider.NodeDetector)
			require.True(t, ok)
			assert.Equal(t, config.DefaultProviderURL, nd.Config.URL)
			assert.Equal(t, 30*time.Second, nd.Config.RequestTimeout)
			assert.NotNil(t, nd.Config.Limiter)
		})
	}
}

func TestNewCommandContext_NoRateLimit(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Provider.RateLimit = 0

	nd, ok := NewCommandContext(c, nil, nil).Detector.(provider.NodeDetector)
	require.True(t, ok)
	assert.Nil(t, nd.Config.Limiter)
}

func TestCommandContext_WithDetector(t *testing.T) {
	t.Parallel()

	d := providertest.NewDetector(nil)
	ctx := NewCommandContext(config.Defaults(), nil, nil).WithDetector(d)
	assert.Same(t, d, ctx.Detector)
}

func TestCommandContext_Networks(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Networks.Custom = []config.NetworkConfig{
		{Name: " Anvil ", ChainID: "0x7a6a", RPCURL: "http://localhost:8546"},
	}

	networks, err := NewCommandContext(c, nil, nil).Networks()
	require.NoError(t, err)

	id, err := networks.Resolve("anvil")
	require.NoError(t, err)
	assert.Equal(t, "0x7a6a", id)

	id, err = networks.Resolve("sepolia")
	require.NoError(t, err)
	assert.Equal(t, "0xaa36a7", id)
}

func TestCommandContext_ManagerConfig(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Connection.AutoConnect = true
	c.Connection.MaxReconnectAttempts = 5
	c.Connection.ReconnectDelayMillis = 250
	c.Connection.PollIntervalSeconds = 2

	mc := NewCommandContext(c, nil, nil).ManagerConfig()
	assert.True(t, mc.AutoConnect)
	assert.True(t, mc.AutoReconnect)
	assert.Equal(t, 5, mc.MaxReconnectAttempts)
	assert.Equal(t, 250*time.Millisecond, mc.ReconnectDelay)
	assert.Equal(t, 2*time.Second, mc.PollInterval)
}

func TestCommandContext_NewManager(t *testing.T) {
	t.Parallel()

	fake := providertest.New()
	ctx := NewCommandContext(config.Defaults(), nil, nil).WithDetector(providertest.NewDetector(fake))

	m, networks, err := ctx.NewManager()
	require.NoError(t, err)
	defer m.Close()

	require.NotNil(t, networks)
	assert.Equal(t, 3, m.MaxReconnectAttempts())
	require.True(t, m.Initialize(context.Background(), "injected"))
	require.True(t, m.Connect(context.Background()))
	assert.Equal(t, providertest.DefaultChainID, m.ChainID())
}

func TestCommandContext_NewManagerInvalidConfig(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Connection.ReconnectDelayMillis = 0

	_, _, err := NewCommandContext(c, nil, nil).NewManager()
	require.ErrorIs(t, err, linkerr.ErrConfigInvalid)

	c = config.Defaults()
	c.Networks.Custom = []config.NetworkConfig{{Name: "broken", ChainID: "7"}}
	_, _, err = NewCommandContext(c, nil, nil).NewManager()
	require.ErrorIs(t, err, linkerr.ErrConfigInvalid)
}

func TestCommandTimeout(t *testing.T) {
	t.Parallel()

	t.Run("follows command cancellation", func(t *testing.T) {
		t.Parallel()
		parent, stop := context.WithCancel(context.Background())
		cmd := &cobra.Command{}
		cmd.SetContext(parent)

		ctx, cancel := commandTimeout(cmd, time.Minute)
		defer cancel()
		stop()

		<-ctx.Done()
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("deadline without command context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := commandTimeout(&cobra.Command{}, 10*time.Millisecond)
		defer cancel()

		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now(), deadline, time.Second)
		<-ctx.Done()
		require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	})

	t.Run("zero duration has no deadline", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := commandTimeout(&cobra.Command{}, 0)
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		require.NoError(t, ctx.Err())
		cancel()
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
