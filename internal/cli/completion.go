package cli

import (
	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for walletlink. Completion covers
commands, flags and config keys for "walletlink config get" and "config set".

Bash:
  $ source <(walletlink completion bash)
  $ walletlink completion bash > /etc/bash_completion.d/walletlink

Zsh (requires compinit):
  $ walletlink completion zsh > "${fpath[1]}/_walletlink"

Fish:
  $ walletlink completion fish > ~/.config/fish/completions/walletlink.fish

PowerShell:
  PS> walletlink completion powershell | Out-String | Invoke-Expression`,
	Example: `  walletlink completion bash
  walletlink completion zsh > "${fpath[1]}/_walletlink"`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(w, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	completionCmd.GroupID = groupConfig
	rootCmd.AddCommand(completionCmd)
}
