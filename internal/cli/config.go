package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify walletlink configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.walletlink/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
	Example: `  walletlink config init
  walletlink config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the file, environment overrides
and command-line flags combined.`,
	Example: `  walletlink config show
  walletlink config show -o json`,
	RunE: runConfigShow,
}

// configPathCmd prints the configuration file path.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Long:  `Print the path of the configuration file walletlink reads.`,
	Example: `  walletlink config path
  walletlink config path --home /tmp/walletlink`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), config.Path(cfg.Home))
		return nil
	},
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its key.

Keys use dot notation: section.name. Run 'walletlink config show' to see them all.`,
	Example: `  walletlink config get provider.url
  walletlink config get connection.max_reconnect_attempts`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigKeys,
	RunE:              runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its key.

The value is validated before the configuration file is updated.`,
	Example: `  walletlink config set provider.url ws://localhost:8545
  walletlink config set connection.reconnect_delay_ms 500
  walletlink config set logging.level info`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeConfigKeys,
	RunE:              runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd, configGetCmd, configSetCmd)
	enrichParentLong(configCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configField reads and writes one configuration value as text.
type configField struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

//nolint:gochecknoglobals // static key registry
var configFields = map[string]configField{
	"home": {
		get: func(c *config.Config) string { return c.Home },
		set: func(c *config.Config, v string) error { c.Home = v; return nil },
	},

	"provider.kind": {
		get: func(c *config.Config) string { return c.Provider.Kind },
		set: func(c *config.Config, v string) error {
			if _, err := wallet.ParseKind(v); err != nil {
				return err
			}
			c.Provider.Kind = strings.ToLower(strings.TrimSpace(v))
			return nil
		},
	},
	"provider.url": {
		get: func(c *config.Config) string { return c.Provider.URL },
		set: func(c *config.Config, v string) error {
			u := config.SanitizeURL(v)
			if u == "" {
				return invalidValue(v, "an http, https, ws or wss URL")
			}
			c.Provider.URL = u
			return nil
		},
	},
	"provider.request_timeout_seconds": intField(func(c *config.Config) *int { return &c.Provider.RequestTimeoutSeconds }),
	"provider.rate_limit": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.Provider.RateLimit, 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return invalidValue(v, "a non-negative number of requests per second")
			}
			c.Provider.RateLimit = f
			return nil
		},
	},
	"provider.burst": intField(func(c *config.Config) *int { return &c.Provider.Burst }),

	"connection.auto_connect":           boolField(func(c *config.Config) *bool { return &c.Connection.AutoConnect }),
	"connection.auto_reconnect":         boolField(func(c *config.Config) *bool { return &c.Connection.AutoReconnect }),
	"connection.max_reconnect_attempts": intField(func(c *config.Config) *int { return &c.Connection.MaxReconnectAttempts }),
	"connection.reconnect_delay_ms":     intField(func(c *config.Config) *int { return &c.Connection.ReconnectDelayMillis }),
	"connection.poll_interval_seconds":  intField(func(c *config.Config) *int { return &c.Connection.PollIntervalSeconds }),

	"networks.default": {
		get: func(c *config.Config) string { return c.Networks.Default },
		set: func(c *config.Config, v string) error {
			key := strings.ToLower(strings.TrimSpace(v))
			nets, err := configuredNetworks(c)
			if err != nil {
				return err
			}
			for _, n := range nets.All() {
				if n.Key == key {
					c.Networks.Default = key
					return nil
				}
			}
			if _, err := nets.Resolve(key); err != nil {
				return err
			}
			return invalidValue(key, "a network name")
		},
	},

	"output.default_format": enumField(func(c *config.Config) *string { return &c.Output.DefaultFormat }, "text", "json", "auto"),
	"output.color":          enumField(func(c *config.Config) *string { return &c.Output.Color }, "auto", "always", "never"),
	"output.verbose":        boolField(func(c *config.Config) *bool { return &c.Output.Verbose }),

	"logging.level": enumField(func(c *config.Config) *string { return &c.Logging.Level }, "off", "error", "info", "debug"),
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
}

func intField(ptr func(*config.Config) *int) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 {
				return invalidValue(v, "a non-negative integer")
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(ptr func(*config.Config) *bool) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return invalidValue(v, "true or false")
			}
			*ptr(c) = b
			return nil
		},
	}
}

func enumField(ptr func(*config.Config) *string, valid ...string) configField {
	return configField{
		get: func(c *config.Config) string { return *ptr(c) },
		set: func(c *config.Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if !slices.Contains(valid, v) {
				return invalidValue(v, strings.Join(valid, ", "))
			}
			*ptr(c) = v
			return nil
		},
	}
}

func invalidValue(value, valid string) error {
	return linkerr.WithDetails(linkerr.ErrInvalidInput, map[string]string{"value": value, "valid": valid})
}

// configKeys returns every settable key in sorted order.
func configKeys() []string {
	keys := make([]string, 0, len(configFields))
	for k := range configFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func completeConfigKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return configKeys(), cobra.ShellCompDirectiveNoFileComp
}

// lookupField resolves key, suggesting the closest known key on a typo.
func lookupField(key string) (configField, error) {
	f, ok := configFields[strings.ToLower(strings.TrimSpace(key))]
	if ok {
		return f, nil
	}
	err := linkerr.WithDetails(linkerr.ErrUnknownConfigKey, map[string]string{"key": key})
	if s := wallet.Suggest(key, configKeys()); s != "" {
		return configField{}, linkerr.WithSuggestion(err, "Did you mean "+s+"?")
	}
	return configField{}, linkerr.WithSuggestion(err, "Run 'walletlink config show' to list the keys")
}

// getConfigValue retrieves a value from the config by key.
func getConfigValue(c *config.Config, key string) (string, error) {
	f, err := lookupField(key)
	if err != nil {
		return "", err
	}
	return f.get(c), nil
}

// setConfigValue validates value and stores it under key.
func setConfigValue(c *config.Config, key, value string) error {
	f, err := lookupField(key)
	if err != nil {
		return err
	}
	err = f.set(c, value)

	var le *linkerr.LinkError
	if errors.As(err, &le) && le.Details != nil {
		details := maps.Clone(le.Details)
		details["key"] = key
		return linkerr.WithDetails(err, details)
	}
	return err
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return linkerr.WithSuggestion(
			linkerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - provider.url: JSON-RPC endpoint of the wallet provider")
	outln(w, "  - connection.auto_reconnect: Retry dropped connections (true/false)")
	outln(w, "  - connection.max_reconnect_attempts: Attempts before giving up")
	outln(w, "  - networks.custom: Extra networks to switch to by name")
	outln(w, "  - logging.level: Log level (off/error/info/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, configView(cfg))
	}
	return displayConfigText(w, cfg)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	if err != nil {
		current = config.Defaults()
		current.Home = cfg.Home
	}

	if err := setConfigValue(current, key, value); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", key, configFields[strings.ToLower(strings.TrimSpace(key))].get(current))
	return nil
}

// configView flattens the configuration into key/value pairs.
func configView(c *config.Config) map[string]any {
	view := make(map[string]any, len(configFields)+1)
	for _, k := range configKeys() {
		view[k] = configFields[k].get(c)
	}
	if len(c.Networks.Custom) > 0 {
		view["networks.custom"] = c.Networks.Custom
	}
	return view
}

// displayConfigText shows the config grouped by section.
func displayConfigText(w io.Writer, c *config.Config) error {
	outln(w, "Configuration:")
	section := ""
	for _, k := range configKeys() {
		head, name, found := strings.Cut(k, ".")
		if !found {
			out(w, "  %s: %s\n", k, configFields[k].get(c))
			continue
		}
		if head != section {
			section = head
			outln(w)
			out(w, "  %s:\n", head)
		}
		value := configFields[k].get(c)
		if value == "" {
			value = "(not configured)"
		}
		out(w, "    %s: %s\n", name, value)
	}

	if len(c.Networks.Custom) > 0 {
		outln(w)
		outln(w, "  custom networks:")
		for _, n := range c.Networks.Custom {
			out(w, "    %s: %s\n", n.Name, n.ChainID)
		}
	}
	return nil
}
