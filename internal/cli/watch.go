package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/connection"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// watchCmd runs an interactive connection session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and follow the connection state",
	Long: `Initialize the wallet adapter, connect, and print every connection event
until interrupted. Commands typed on stdin drive the connection:

  connect              connect (clears a previous disconnect)
  disconnect           disconnect and stop automatic reconnection
  switch <network>     switch to a network name or hex chain ID
  reconnect            retry now, restarting the attempt budget
  cancel               cancel a pending automatic reconnect
  reset                clear the disconnect override without connecting
  status               print the current state
  networks             list known networks
  stats                print provider call and reconnection counters
  help                 list commands
  quit                 disconnect and exit

In JSON mode every event is written as one JSON object per line.`,
	Example: `  walletlink watch
  walletlink watch --provider ws://localhost:8545 --network sepolia
  walletlink watch -o json | jq .state.status`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var watchNetwork string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	watchCmd.GroupID = groupConnection
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchNetwork, "network", "", "network to switch to once connected (name or hex chain ID)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	kind, err := parseSupportedKind(cmdCtx.Cfg.Provider.Kind)
	if err != nil {
		return err
	}

	m, networks, err := cmdCtx.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newWatchSession(m, networks, cmdCtx.Cfg.Networks.Default, cmdCtx.Formatter, cmd.ErrOrStderr())
	defer s.close()

	if !m.Initialize(ctx, string(kind)) {
		return linkerr.WithDetails(linkerr.ErrNoAdapter, map[string]string{"reason": m.LastError()})
	}
	if m.Status() != wallet.StatusConnected {
		m.Connect(ctx)
	}
	if watchNetwork != "" && m.IsConnected() {
		m.SwitchNetwork(ctx, watchNetwork)
	}

	s.run(ctx, cmd.InOrStdin())
	if cmdCtx.Cfg.Output.Verbose {
		s.print(func() error { return renderStats(s.f, metrics.Global.Snapshot()) })
	}
	return nil
}

// parseSupportedKind resolves name to a wallet kind that has an adapter.
func parseSupportedKind(name string) (wallet.Kind, error) {
	kind, err := wallet.ParseKind(name)
	if err != nil {
		return "", err
	}
	if !kind.Supported() {
		return "", linkerr.WithSuggestion(
			linkerr.WithDetails(linkerr.ErrNotSupported, map[string]string{"kind": string(kind)}),
			"Use --kind injected",
		)
	}
	return kind, nil
}

// watchSession prints manager events and executes typed commands. Both
// write through the same formatter, serialized by mu.
type watchSession struct {
	m              *connection.Manager
	networks       *wallet.Networks
	defaultNetwork string
	notices        *output.Messenger

	mu sync.Mutex
	f  *output.Formatter

	sub wallet.SubscriptionID
}

func newWatchSession(m *connection.Manager, networks *wallet.Networks, defaultNetwork string, f *output.Formatter, errw io.Writer) *watchSession {
	s := &watchSession{
		m:              m,
		networks:       networks,
		defaultNetwork: defaultNetwork,
		f:              f,
		notices:        output.NewMessenger(f.Writer(), errw, f.Format()),
	}
	s.sub = m.Subscribe(wallet.ObserverFunc(s.onEvent))
	return s
}

func (s *watchSession) close() {
	s.m.Unsubscribe(s.sub)
}

func (s *watchSession) onEvent(e wallet.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = output.RenderEvent(s.f, output.NewEventView(e, s.m.MaxReconnectAttempts(), s.networks))
}

// run reads commands from in until quit, end of input followed by ctx
// cancellation, or ctx cancellation.
func (s *watchSession) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// no more commands; keep following events
				lines = nil
				continue
			}
			if s.exec(ctx, line) {
				return
			}
		}
	}
}

// exec runs one command line and reports whether the session should end.
func (s *watchSession) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch name := strings.ToLower(fields[0]); name {
	case "connect":
		s.m.Connect(ctx)
	case "disconnect":
		s.m.Disconnect(ctx)
	case "switch":
		if len(fields) != 2 {
			s.notices.Warn("usage: switch <network>")
			return false
		}
		s.m.SwitchNetwork(ctx, fields[1])
	case "reconnect":
		s.m.ForceReconnect(ctx)
	case "cancel":
		s.m.CancelReconnect()
	case "reset":
		s.m.ResetManualOverride()
		s.notices.Info("manual disconnect cleared")
	case "status":
		s.print(func() error {
			return output.RenderState(s.f, output.NewStateView(s.m.State(), s.m.MaxReconnectAttempts(), s.networks))
		})
	case "networks":
		s.print(func() error {
			return output.RenderNetworks(s.f, s.networks.All(), s.defaultNetwork)
		})
	case "stats":
		s.print(func() error { return renderStats(s.f, metrics.Global.Snapshot()) })
	case "help", "?":
		s.print(func() error {
			return s.f.Println("commands: " + strings.Join(watchCommands, ", "))
		})
	case "quit", "exit":
		s.m.Disconnect(ctx)
		return true
	default:
		msg := "unknown command " + name
		if sug := wallet.Suggest(name, watchCommands); sug != "" {
			msg += " (did you mean " + sug + "?)"
		}
		s.notices.Warn(msg)
	}
	return false
}

func (s *watchSession) print(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = fn()
}

//nolint:gochecknoglobals // static command list
var watchCommands = []string{
	"connect", "disconnect", "switch", "reconnect", "cancel", "reset", "status", "networks", "stats", "help", "quit",
}

// renderStats writes the counters as one line of text or as JSON.
func renderStats(f *output.Formatter, snap metrics.Snapshot) error {
	if f.IsJSON() {
		return f.Print(snap)
	}
	return f.Printf("rpc: %d calls, %d errors, %.1fms avg | connect: %d (%d failed) | reconnect: %d (%d failed, %d gave up)\n",
		snap.RPCCalls, snap.RPCErrors, snap.RPCLatencyAvgMs,
		snap.Connects, snap.ConnectFailures,
		snap.Reconnects, snap.ReconnectFailures, snap.ReconnectsExhausted)
}
