package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// statusCmd connects once and prints the resulting state.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect once and print the connection state",
	Long: `Detect the wallet provider, connect once, print the connection state and
disconnect. No reconnection is attempted.

With --require-connected the command fails when no account could be
connected, which makes it usable as a health check.`,
	Example: `  walletlink status
  walletlink status --provider http://localhost:8545 -o json
  walletlink status --require-connected && echo ready`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var statusRequireConnected bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	statusCmd.GroupID = groupConnection
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusRequireConnected, "require-connected", false, "fail unless an account is connected")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	kind, err := parseSupportedKind(cmdCtx.Cfg.Provider.Kind)
	if err != nil {
		return err
	}

	// one shot: never retry in the background
	cmdCtx.Cfg.Connection.AutoReconnect = false
	cmdCtx.Cfg.Connection.PollIntervalSeconds = 0

	m, networks, err := cmdCtx.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, cancel := commandTimeout(cmd, cmdCtx.Cfg.RequestTimeout())
	defer cancel()

	if m.Initialize(ctx, string(kind)) && !m.IsConnected() {
		m.Connect(ctx)
	}

	st := m.State()
	if err := output.RenderState(cmdCtx.Formatter, output.NewStateView(st, m.MaxReconnectAttempts(), networks)); err != nil {
		return err
	}

	if statusRequireConnected && !st.IsConnected() {
		return notConnectedError(st)
	}
	return nil
}

// notConnectedError explains why st has no connected account.
func notConnectedError(st wallet.State) error {
	sentinel := linkerr.ErrNoAccountsReturned
	if !st.ProviderDetected {
		sentinel = linkerr.ErrProviderNotDetected
	}
	if st.LastError == "" {
		return sentinel
	}
	return linkerr.WithCause(sentinel, errors.New(st.LastError)) //nolint:err113 // carries the recorded reason
}
