// Package provider defines the wallet provider handle contract: a request
// channel for wallet RPC methods and a listener registry for asynchronous
// provider events. It also ships a node-backed implementation that exposes a
// JSON-RPC endpoint's unlocked accounts as an injected wallet.
package provider

import (
	"context"
	"encoding/json"
)

// Wallet RPC methods used by the connection lifecycle.
const (
	MethodRequestAccounts   = "eth_requestAccounts"
	MethodAccounts          = "eth_accounts"
	MethodChainID           = "eth_chainId"
	MethodSwitchChain       = "wallet_switchEthereumChain"
	MethodAddChain          = "wallet_addEthereumChain"
	MethodRevokePermissions = "wallet_revokePermissions"
)

// EventName identifies an asynchronous provider event.
type EventName string

// Provider events.
const (
	EventAccountsChanged EventName = "accountsChanged"
	EventChainChanged    EventName = "chainChanged"
	EventConnect         EventName = "connect"
	EventDisconnect      EventName = "disconnect"
)

// RequestArguments is a single wallet RPC request.
type RequestArguments struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// Message is the payload delivered to listeners.
// Accounts is set for accountsChanged, ChainID for chainChanged and connect,
// Err for disconnect.
type Message struct {
	Event    EventName
	Accounts []string
	ChainID  string
	Err      error
}

// Listener receives provider events.
type Listener func(Message)

// Provider is the handle to an external wallet provider.
type Provider interface {
	// Request sends a wallet RPC request and returns the raw JSON result.
	Request(ctx context.Context, args RequestArguments) (json.RawMessage, error)

	// On registers a listener for event and returns a function that removes it.
	On(event EventName, listener Listener) (unsubscribe func())

	// RemoveAllListeners detaches every registered listener.
	RemoveAllListeners()
}

// Logger is the interface for provider logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
