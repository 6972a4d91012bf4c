package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mrz1836/walletlink/internal/wallet"
)

// StateView is the printable form of a connection state.
type StateView struct {
	Status           wallet.Status `json:"status"`
	Account          string        `json:"account,omitempty"`
	ChainID          string        `json:"chain_id,omitempty"`
	Network          string        `json:"network,omitempty"`
	WalletKind       wallet.Kind   `json:"wallet_kind,omitempty"`
	ProviderDetected bool          `json:"provider_detected"`
	ManualOverride   bool          `json:"manual_override"`
	ReconnectAttempt int           `json:"reconnect_attempt,omitempty"`
	MaxAttempts      int           `json:"max_reconnect_attempts,omitempty"`
	LastError        string        `json:"last_error,omitempty"`
}

// NewStateView builds the view of s. networks may be nil, in which case the
// network name is left empty.
func NewStateView(s wallet.State, maxAttempts int, networks *wallet.Networks) StateView {
	v := StateView{
		Status:           s.Status,
		Account:          wallet.ChecksumAddress(s.Account),
		ChainID:          s.ChainID,
		WalletKind:       s.WalletKind,
		ProviderDetected: s.ProviderDetected,
		ManualOverride:   s.ManualOverride,
		ReconnectAttempt: s.ReconnectAttempt,
		LastError:        s.LastError,
	}
	if s.Status == wallet.StatusReconnecting {
		v.MaxAttempts = maxAttempts
	}
	if networks != nil && s.ChainID != "" {
		if net, ok := networks.ByChainID(s.ChainID); ok {
			v.Network = net.Name
		}
	}
	return v
}

// StatusLine summarizes the view in one line, as a status bar would.
func (v StateView) StatusLine() string {
	switch v.Status {
	case wallet.StatusConnected:
		line := "Connected " + wallet.ShortAddress(v.Account)
		if on := v.networkLabel(); on != "" {
			line += " on " + on
		}
		return line
	case wallet.StatusConnecting:
		return "Connecting..."
	case wallet.StatusReconnecting:
		if v.MaxAttempts > 0 {
			return fmt.Sprintf("Reconnecting... Attempt %d/%d", v.ReconnectAttempt, v.MaxAttempts)
		}
		return fmt.Sprintf("Reconnecting... Attempt %d", v.ReconnectAttempt)
	case wallet.StatusDisconnected:
		if v.LastError != "" {
			return "Disconnected: " + v.LastError
		}
		return "Disconnected"
	default:
		return v.Status.String()
	}
}

func (v StateView) networkLabel() string {
	if v.Network != "" {
		return v.Network
	}
	return v.ChainID
}

// RenderState writes the view in detail: a key/value table for text, an
// object for JSON.
func RenderState(f *Formatter, v StateView) error {
	if f.IsJSON() {
		return f.Print(v)
	}
	return stateTable(v).Render(f.Writer())
}

func stateTable(v StateView) *Table {
	t := NewTable()
	t.SetNoHeader(true)
	t.AddRow("Status:", v.StatusLine())
	if v.WalletKind != "" {
		t.AddRow("Wallet:", string(v.WalletKind))
	}
	if v.Account != "" {
		t.AddRow("Account:", v.Account)
	}
	if v.ChainID != "" {
		t.AddRow("Network:", v.networkLabel())
		t.AddRow("Chain ID:", v.ChainID)
	}
	t.AddRow("Provider:", detected(v.ProviderDetected))
	if v.ManualOverride {
		t.AddRow("Override:", "disconnected by user")
	}
	if v.LastError != "" && v.Status != wallet.StatusDisconnected {
		t.AddRow("Last error:", v.LastError)
	}
	return t
}

func detected(ok bool) string {
	if ok {
		return "detected"
	}
	return "not detected"
}

// EventView is one line of a watched event stream.
type EventView struct {
	Event   wallet.EventType `json:"event"`
	Account string           `json:"account,omitempty"`
	ChainID string           `json:"chain_id,omitempty"`
	Error   string           `json:"error,omitempty"`
	State   StateView        `json:"state"`
}

// NewEventView builds the view of e.
func NewEventView(e wallet.Event, maxAttempts int, networks *wallet.Networks) EventView {
	return EventView{
		Event:   e.Type,
		Account: wallet.ChecksumAddress(e.Account),
		ChainID: e.ChainID,
		Error:   e.Error,
		State:   NewStateView(e.State, maxAttempts, networks),
	}
}

// RenderEvent writes one event. JSON mode writes compact JSON lines so the
// stream can be piped.
func RenderEvent(f *Formatter, v EventView) error {
	if f.IsJSON() {
		return writeJSONLine(f.Writer(), v)
	}

	var line string
	switch v.Event {
	case wallet.EventStateChanged:
		line = "● " + v.State.StatusLine()
	case wallet.EventConnected:
		line = "↑ connected " + v.Account
	case wallet.EventDisconnected:
		line = "↓ disconnected"
	case wallet.EventError:
		line = "✗ " + v.Error
	case wallet.EventChainChanged:
		line = "⇄ chain " + v.ChainID
		if v.State.Network != "" && v.State.ChainID == v.ChainID {
			line += " (" + v.State.Network + ")"
		}
	default:
		line = v.Event.String()
	}
	return f.Println(line)
}

// RenderNetworks writes the known networks, marking the default one.
func RenderNetworks(f *Formatter, networks []wallet.Network, defaultKey string) error {
	if f.IsJSON() {
		return f.Print(networks)
	}

	t := NewTable("", "KEY", "NAME", "CHAIN ID", "ID", "RPC")
	for _, n := range networks {
		mark := ""
		if n.Key == defaultKey {
			mark = "*"
		}
		t.AddRow(mark, n.Key, n.Name, n.ChainID, strconv.FormatUint(n.ID(), 10), n.RPCURL)
	}
	return t.Render(f.Writer())
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
