package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

func TestGetConfigValue(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Home = "/tmp/walletlink"

	tests := []struct {
		key  string
		want string
	}{
		{"home", "/tmp/walletlink"},
		{"provider.kind", "injected"},
		{"provider.url", config.DefaultProviderURL},
		{"provider.request_timeout_seconds", "30"},
		{"provider.rate_limit", "5"},
		{"provider.burst", "10"},
		{"connection.auto_connect", "false"},
		{"connection.auto_reconnect", "true"},
		{"connection.max_reconnect_attempts", "3"},
		{"connection.reconnect_delay_ms", "2000"},
		{"connection.poll_interval_seconds", "10"},
		{"networks.default", "localhost"},
		{"output.default_format", "auto"},
		{"output.color", "auto"},
		{"output.verbose", "false"},
		{"logging.level", "error"},
		{"  Provider.URL ", config.DefaultProviderURL},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			t.Parallel()
			got, err := getConfigValue(c, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetConfigValue_UnknownKey(t *testing.T) {
	t.Parallel()

	_, err := getConfigValue(config.Defaults(), "provider.ur")
	require.ErrorIs(t, err, linkerr.ErrUnknownConfigKey)

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Did you mean provider.url?", le.Suggestion)
	assert.Equal(t, "provider.ur", le.Details["key"])

	_, err = getConfigValue(config.Defaults(), "completely.unrelated.setting")
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Suggestion, "walletlink config show")
}

func TestSetConfigValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"provider.kind", " MetaMask ", "metamask"},
		{"provider.url", " ws://localhost:8546 ", "ws://localhost:8546"},
		{"provider.request_timeout_seconds", "5", "5"},
		{"provider.rate_limit", "2.5", "2.5"},
		{"provider.burst", "3", "3"},
		{"connection.auto_connect", "true", "true"},
		{"connection.auto_reconnect", "false", "false"},
		{"connection.max_reconnect_attempts", "0", "0"},
		{"connection.reconnect_delay_ms", "250", "250"},
		{"connection.poll_interval_seconds", "0", "0"},
		{"networks.default", "Sepolia", "sepolia"},
		{"output.default_format", "JSON", "json"},
		{"output.color", "never", "never"},
		{"output.verbose", "1", "true"},
		{"logging.level", "info", "info"},
		{"logging.file", "/var/log/walletlink.log", "/var/log/walletlink.log"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			t.Parallel()
			c := config.Defaults()
			require.NoError(t, setConfigValue(c, tc.key, tc.value))

			got, err := getConfigValue(c, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key    string
		value  string
		target error
	}{
		{"provider.kind", "ledger", linkerr.ErrInvalidInput},
		{"provider.request_timeout_seconds", "-1", linkerr.ErrInvalidInput},
		{"provider.rate_limit", "fast", linkerr.ErrInvalidInput},
		{"connection.auto_reconnect", "sometimes", linkerr.ErrInvalidInput},
		{"connection.max_reconnect_attempts", "three", linkerr.ErrInvalidInput},
		{"networks.default", "0x1", linkerr.ErrInvalidInput},
		{"networks.default", "atlantis", linkerr.ErrUnknownNetwork},
		{"output.default_format", "yaml", linkerr.ErrInvalidInput},
		{"logging.level", "trace", linkerr.ErrInvalidInput},
		{"logging.levl", "info", linkerr.ErrUnknownConfigKey},
	}

	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Parallel()
			c := config.Defaults()
			before := *c

			err := setConfigValue(c, tc.key, tc.value)
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, before, *c, "failed set must not modify the config")
		})
	}
}

func TestSetConfigValue_DetailsCarryKey(t *testing.T) {
	t.Parallel()

	err := setConfigValue(config.Defaults(), "output.color", "purple")

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "output.color", le.Details["key"])
	assert.Equal(t, "purple", le.Details["value"])
	assert.Equal(t, "auto, always, never", le.Details["valid"])

	// the shared sentinel is never mutated
	assert.Nil(t, linkerr.ErrInvalidInput.Details)
}

func TestSetConfigValue_CustomNetworkDefault(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Networks.Custom = []config.NetworkConfig{{Name: "Anvil", ChainID: "0x7a6a"}}

	require.NoError(t, setConfigValue(c, "networks.default", "anvil"))
	assert.Equal(t, "anvil", c.Networks.Default)
}

func TestConfigKeys_Sorted(t *testing.T) {
	t.Parallel()

	keys := configKeys()
	require.Len(t, keys, len(configFields))
	assert.IsIncreasing(t, keys)

	comps, _ := completeConfigKeys(nil, nil, "")
	assert.Equal(t, keys, comps)

	comps, _ = completeConfigKeys(nil, []string{"provider.url"}, "")
	assert.Empty(t, comps)
}

func TestConfigView(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Networks.Custom = []config.NetworkConfig{{Name: "Anvil", ChainID: "0x7a6a"}}

	view := configView(c)
	assert.Equal(t, config.DefaultProviderURL, view["provider.url"])
	assert.Equal(t, "3", view["connection.max_reconnect_attempts"])
	assert.Contains(t, view, "networks.custom")

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, view))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "localhost", decoded["networks.default"])
}

func TestDisplayConfigText(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Home = "/tmp/walletlink"
	c.Logging.File = ""
	c.Networks.Custom = []config.NetworkConfig{{Name: "Anvil", ChainID: "0x7a6a"}}

	var buf bytes.Buffer
	require.NoError(t, displayConfigText(&buf, c))
	out := buf.String()

	assert.Contains(t, out, "Configuration:")
	assert.Contains(t, out, "  home: /tmp/walletlink")
	assert.Contains(t, out, "  provider:\n")
	assert.Contains(t, out, "    url: "+config.DefaultProviderURL)
	assert.Contains(t, out, "    file: (not configured)")
	assert.Contains(t, out, "  custom networks:\n    Anvil: 0x7a6a")
}

// NOT parallel: the config commands read package-level globals.
func TestConfigCommands(t *testing.T) {
	restore := saveGlobals(t)
	defer restore()

	home := t.TempDir()
	cfg = config.Defaults()
	cfg.Home = home
	formatter = output.NewFormatter(output.FormatText, &bytes.Buffer{})

	run := func(fn func() error) {
		t.Helper()
		require.NoError(t, fn())
	}

	var buf bytes.Buffer
	configInitCmd.SetOut(&buf)
	run(func() error { return runConfigInit(configInitCmd, nil) })
	assert.Contains(t, buf.String(), "Configuration initialized at "+config.Path(home))

	err := runConfigInit(configInitCmd, nil)
	require.ErrorIs(t, err, linkerr.ErrGeneral)

	buf.Reset()
	configSetCmd.SetOut(&buf)
	run(func() error { return runConfigSet(configSetCmd, []string{"connection.max_reconnect_attempts", "5"}) })
	assert.Equal(t, "Set connection.max_reconnect_attempts = 5\n", buf.String())

	saved, err := config.Load(config.Path(home))
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Connection.MaxReconnectAttempts)

	// values that pass the field check but fail validation are not saved
	err = runConfigSet(configSetCmd, []string{"connection.reconnect_delay_ms", "0"})
	require.ErrorIs(t, err, linkerr.ErrConfigInvalid)
	saved, err = config.Load(config.Path(home))
	require.NoError(t, err)
	assert.Equal(t, 2000, saved.Connection.ReconnectDelayMillis)

	buf.Reset()
	configGetCmd.SetOut(&buf)
	run(func() error { return runConfigGet(configGetCmd, []string{"networks.default"}) })
	assert.Equal(t, "localhost\n", buf.String())
}
