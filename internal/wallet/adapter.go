package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/walletlink/internal/provider"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// MsgWalletDisconnected is recorded when the provider drops the connection.
const MsgWalletDisconnected = "Wallet disconnected"

// MaxReconnectMessage is recorded when reconnection gives up.
func MaxReconnectMessage() string {
	return linkerr.UserMessage(linkerr.ErrMaxReconnectAttempts)
}

// Adapter is the capability set of a wallet provider family.
// No method panics or returns an error: failures are recorded in the
// state's LastError and reported to observers.
type Adapter interface {
	// Kind returns the adapter family.
	Kind() Kind

	// Connect requests account access. Concurrent calls share one attempt.
	// Connect clears the manual override.
	Connect(ctx context.Context) bool

	// Restore locates the provider and, unless the manual override is set,
	// picks up an account access granted earlier without prompting. It
	// never clears the override and reports whether the wallet is connected.
	Restore(ctx context.Context) bool

	// Reconnect is an automatic connection attempt. It does nothing and
	// returns false while the manual override is set.
	Reconnect(ctx context.Context) bool

	// Disconnect tears the connection down and sets the manual override.
	Disconnect(ctx context.Context)

	IsConnected() bool
	Account() string
	ChainID() string

	// SwitchNetwork asks the wallet to change chains. A chain the wallet
	// does not know is added first when it is one of the configured
	// networks. The chain ID is recorded when the provider reports the change.
	SwitchNetwork(ctx context.Context, chainID string) bool

	// NetworkID queries the current chain ID as a number, 0 when unavailable.
	NetworkID(ctx context.Context) uint64

	State() State

	// OnStateChange registers fn for full-state notifications.
	OnStateChange(fn func(State)) (unsubscribe func())

	Subscribe(o Observer) SubscriptionID
	Unsubscribe(id SubscriptionID) bool

	// Close releases the adapter without setting the manual override.
	Close()
}

// Adapter defaults.
const (
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 2 * time.Second
	DefaultPollInterval         = 10 * time.Second
)

// Config configures an adapter.
type Config struct {
	// AutoReconnect enables bounded reconnection after the provider drops
	// a connection the user did not close.
	AutoReconnect bool

	MaxReconnectAttempts int

	// ReconnectDelay is the base backoff delay; attempt n waits ReconnectDelay * 2^(n-1).
	ReconnectDelay time.Duration

	// PollInterval is the liveness poll period while connected. Zero disables polling.
	PollInterval time.Duration

	// ManualOverride starts the adapter with the override set, for an
	// adapter replacing one the user disconnected.
	ManualOverride bool

	// Networks describes the chains SwitchNetwork may add. Nil uses the presets.
	Networks *Networks

	Logger Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		AutoReconnect:        true,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		PollInterval:         DefaultPollInterval,
	}
}

// NewAdapter creates the adapter for kind. Recognized kinds without an
// implementation fail with ErrNotSupported.
func NewAdapter(kind Kind, cfg Config, detector provider.Detector) (Adapter, error) {
	switch kind {
	case KindInjected:
		return NewInjectedAdapter(cfg, detector), nil
	case KindWalletConnect, KindCoinbase:
		return nil, linkerr.ErrNotSupported
	default:
		return nil, linkerr.WithCause(linkerr.ErrInvalidInput, fmt.Errorf("unsupported wallet kind %q", kind)) //nolint:err113 // carries the rejected value
	}
}
