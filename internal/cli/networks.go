package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/output"
)

// networksCmd lists the networks the wallet can be switched to.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List known networks",
	Long: `List the built-in network presets and the custom networks from the
configuration. The default network is marked with *.

Any of the keys can be given to 'switch' in a watch session.`,
	Example: `  walletlink networks
  walletlink networks -o json`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		networks, err := cmdCtx.Networks()
		if err != nil {
			return err
		}
		return output.RenderNetworks(cmdCtx.Formatter, networks.All(), cmdCtx.Cfg.Networks.Default)
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	networksCmd.GroupID = groupConnection
	rootCmd.AddCommand(networksCmd)
}
