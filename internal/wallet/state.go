// Package wallet implements the wallet adapter layer: the connection state
// model, the serialized state store with its observers, bounded reconnection
// and the injected-provider adapter.
package wallet

import (
	"fmt"
	"strings"
)

// Status is the connection status of an adapter or manager.
type Status int

// Connection statuses.
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	case "reconnecting":
		*s = StatusReconnecting
	default:
		return fmt.Errorf("unknown status %q", text) //nolint:err113 // decoding error with value
	}
	return nil
}

// State is a snapshot of the connection state.
// Account is non-empty exactly when Status is StatusConnected.
type State struct {
	Status           Status `json:"status"`
	Account          string `json:"account,omitempty"`
	ChainID          string `json:"chain_id,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	WalletKind       Kind   `json:"wallet_kind,omitempty"`
	ManualOverride   bool   `json:"manual_override"`
	ProviderDetected bool   `json:"provider_detected"`
	ReconnectAttempt int    `json:"reconnect_attempt,omitempty"`
}

// IsConnected reports whether the state holds a connected account.
func (s State) IsConnected() bool {
	return s.Status == StatusConnected && s.Account != ""
}

// Update is a partial state update. Nil fields are left unchanged.
type Update struct {
	Status           *Status
	Account          *string
	ChainID          *string
	LastError        *string
	WalletKind       *Kind
	ManualOverride   *bool
	ProviderDetected *bool
	ReconnectAttempt *int
}

// Ptr returns a pointer to v, for building Updates.
func Ptr[T any](v T) *T {
	return &v
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u == Update{}
}

// Merge returns s with u applied and the state invariants restored:
// leaving Connected clears the account, a Connected state without an
// account falls back to Disconnected, and entering Connected clears
// LastError and the reconnect attempt unless u sets them.
func (s State) Merge(u Update) State {
	prev := s

	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Account != nil {
		s.Account = *u.Account
	}
	if u.ChainID != nil {
		s.ChainID = *u.ChainID
	}
	if u.LastError != nil {
		s.LastError = *u.LastError
	}
	if u.WalletKind != nil {
		s.WalletKind = *u.WalletKind
	}
	if u.ManualOverride != nil {
		s.ManualOverride = *u.ManualOverride
	}
	if u.ProviderDetected != nil {
		s.ProviderDetected = *u.ProviderDetected
	}
	if u.ReconnectAttempt != nil {
		s.ReconnectAttempt = *u.ReconnectAttempt
	}

	if s.Status == StatusConnected && s.Account == "" {
		s.Status = StatusDisconnected
	}
	if s.Status != StatusConnected {
		s.Account = ""
	}

	if s.Status == StatusConnected && prev.Status != StatusConnected {
		if u.LastError == nil {
			s.LastError = ""
		}
		if u.ReconnectAttempt == nil {
			s.ReconnectAttempt = 0
		}
	}

	return s
}
