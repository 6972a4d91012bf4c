// Package connection owns the wallet connection lifecycle: it drives one
// adapter at a time, applies the manual override gate a second time, runs
// the reconnection policy and publishes a single ordered event stream.
package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// reconnectTimeout bounds a single automatic reconnection attempt.
const reconnectTimeout = 30 * time.Second

// Logger is the interface for connection logging.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config configures a Manager.
type Config struct {
	// AutoConnect connects right after Initialize.
	AutoConnect bool

	// AutoReconnect enables bounded reconnection after a drop the user did not ask for.
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// PollInterval is handed to the adapter's liveness poll. Zero disables it.
	PollInterval time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		AutoReconnect:        true,
		MaxReconnectAttempts: wallet.DefaultMaxReconnectAttempts,
		ReconnectDelay:       wallet.DefaultReconnectDelay,
		PollInterval:         wallet.DefaultPollInterval,
	}
}

// AdapterFactory creates the adapter for a wallet kind.
type AdapterFactory func(kind wallet.Kind, cfg wallet.Config, detector provider.Detector) (wallet.Adapter, error)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its adapters.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAdapterFactory replaces the adapter constructor.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.factory = f
		}
	}
}

// WithNetworks sets the networks SwitchNetwork resolves names against.
func WithNetworks(n *wallet.Networks) Option {
	return func(m *Manager) {
		if n != nil {
			m.networks = n
		}
	}
}

// Manager owns the active adapter and the authoritative connection state.
//
// Adapter notifications are mirrored into the manager's store through a
// gate: while the manager's manual override is set, updates that would raise
// connectivity are dropped. The manager runs the reconnection policy itself;
// its adapters are created with reconnection disabled.
type Manager struct {
	cfg         Config
	detector    provider.Detector
	logger      Logger
	factory     AdapterFactory
	networks    *wallet.Networks
	store       *wallet.Store
	reconnector *wallet.Reconnector

	// gen identifies the active adapter; it changes on Initialize and Close.
	gen atomic.Uint64

	mu      sync.Mutex
	adapter wallet.Adapter
	sub     wallet.SubscriptionID
	seen    wallet.State

	// errMirrored is set when the adapter's last state change already
	// carried the error its next error event reports.
	errMirrored bool
	closed      bool
}

// New creates a manager with no adapter. Call Initialize before connecting.
func New(cfg Config, detector provider.Detector, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		detector: detector,
		logger:   nopLogger{},
		factory:  wallet.NewAdapter,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.networks == nil {
		m.networks, _ = wallet.NewNetworks()
	}
	m.store = wallet.NewStore(wallet.State{}, m.logger)
	m.reconnector = wallet.NewReconnector(cfg.ReconnectDelay, cfg.MaxReconnectAttempts)
	return m
}

// Initialize replaces the active adapter with one of the named kind. It then
// connects when AutoConnect is set, or otherwise locates the provider and
// restores an account access granted earlier, which never prompts and is
// skipped while the manual override is set. It reports false when the kind
// is unknown or has no implementation; the reason is recorded in LastError.
func (m *Manager) Initialize(ctx context.Context, kindName string) bool {
	m.detachAdapter()

	reset := wallet.Update{
		Status:           wallet.Ptr(wallet.StatusDisconnected),
		Account:          wallet.Ptr(""),
		ChainID:          wallet.Ptr(""),
		ProviderDetected: wallet.Ptr(false),
		ReconnectAttempt: wallet.Ptr(0),
	}

	kind, err := m.newAdapter(kindName)
	if err != nil {
		m.logger.Error("initialize %s wallet: %v", kindName, err)
		reset.WalletKind = wallet.Ptr(wallet.Kind(""))
		reset.LastError = wallet.Ptr(fmt.Sprintf("Failed to initialize %s wallet: %s", kindName, linkerr.UserMessage(err)))
		m.store.Apply(reset)
		return false
	}

	m.logger.Info("initialized %s wallet", kind)
	reset.WalletKind = wallet.Ptr(kind)
	reset.LastError = wallet.Ptr("")
	m.store.Apply(reset)

	if m.cfg.AutoConnect {
		return m.Connect(ctx)
	}
	m.restore(ctx)
	return true
}

// restore lets the active adapter detect its provider and pick up an
// existing authorization. Its notifications reach the manager through the gate.
func (m *Manager) restore(ctx context.Context) {
	a, _ := m.current()
	if a == nil {
		return
	}
	if a.Restore(ctx) {
		m.logger.Info("restored existing %s authorization", a.Kind())
	}
}

// newAdapter creates and attaches the adapter for kindName.
func (m *Manager) newAdapter(kindName string) (wallet.Kind, error) {
	kind, err := wallet.ParseKind(kindName)
	if err != nil {
		return "", err
	}
	a, err := m.factory(kind, m.adapterConfig(), m.detector)
	if err != nil {
		return "", err
	}
	if !m.attach(a) {
		a.Close()
		return "", linkerr.ErrNoAdapter
	}
	return kind, nil
}

func (m *Manager) adapterConfig() wallet.Config {
	return wallet.Config{
		AutoReconnect:        false,
		MaxReconnectAttempts: m.cfg.MaxReconnectAttempts,
		ReconnectDelay:       m.cfg.ReconnectDelay,
		PollInterval:         m.cfg.PollInterval,
		ManualOverride:       m.store.State().ManualOverride,
		Networks:             m.networks,
		Logger:               m.logger,
	}
}

// attach makes a the active adapter and subscribes to it.
func (m *Manager) attach(a wallet.Adapter) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	gen := m.gen.Add(1)
	m.adapter = a
	m.seen = a.State()
	m.errMirrored = false
	m.mu.Unlock()

	sub := a.Subscribe(wallet.ObserverFunc(func(e wallet.Event) {
		m.onAdapterEvent(gen, e)
	}))

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return true
}

// detachAdapter retires the active adapter, if any.
func (m *Manager) detachAdapter() {
	m.mu.Lock()
	m.gen.Add(1)
	a, sub := m.adapter, m.sub
	m.adapter = nil
	m.sub = ""
	m.mu.Unlock()

	m.reconnector.Reset()
	if a != nil {
		a.Unsubscribe(sub)
		a.Close()
	}
}

// current returns the active adapter and its generation.
func (m *Manager) current() (wallet.Adapter, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapter, m.gen.Load()
}

// Adapter returns the active adapter, or nil before Initialize.
func (m *Manager) Adapter() wallet.Adapter {
	a, _ := m.current()
	return a
}

// live holds while gen is the active adapter and the user has not disconnected.
func (m *Manager) live(gen uint64) func(wallet.State) bool {
	return func(s wallet.State) bool { return m.gen.Load() == gen && !s.ManualOverride }
}

// Connect connects the active adapter. It clears the manual override and
// reports whether the wallet ended up connected.
func (m *Manager) Connect(ctx context.Context) bool {
	a, gen := m.current()
	if a == nil {
		m.recordError(linkerr.ErrNoAdapter)
		return false
	}

	m.store.ApplyFunc(func(s wallet.State) (wallet.Update, bool) {
		u := wallet.Update{ManualOverride: wallet.Ptr(false)}
		if s.Status != wallet.StatusConnected {
			u.Status = wallet.Ptr(wallet.StatusConnecting)
		}
		return u, true
	})

	ok := a.Connect(ctx)
	m.sync(gen, a)
	metrics.Global.RecordConnect(ok)
	if ok {
		m.reconnector.Reset()
	}
	return ok
}

// sync copies the adapter's connectivity into the manager state, for
// adapter calls that finished without notifying.
func (m *Manager) sync(gen uint64, a wallet.Adapter) {
	st := a.State()
	m.store.ApplyFunc(func(s wallet.State) (wallet.Update, bool) {
		if !m.live(gen)(s) {
			return wallet.Update{}, false
		}
		return m.gate(s, wallet.Update{
			Status:           wallet.Ptr(st.Status),
			Account:          wallet.Ptr(st.Account),
			ChainID:          wallet.Ptr(st.ChainID),
			ProviderDetected: wallet.Ptr(st.ProviderDetected),
		}), true
	})
}

// Disconnect cancels any pending reconnection, disconnects the adapter and
// sets the manual override. It always completes.
func (m *Manager) Disconnect(ctx context.Context) {
	m.reconnector.Reset()
	m.store.Apply(wallet.Update{ManualOverride: wallet.Ptr(true), ReconnectAttempt: wallet.Ptr(0)})

	if a, _ := m.current(); a != nil {
		a.Disconnect(ctx)
	}

	m.store.Apply(wallet.Update{
		Status:           wallet.Ptr(wallet.StatusDisconnected),
		Account:          wallet.Ptr(""),
		ChainID:          wallet.Ptr(""),
		LastError:        wallet.Ptr(""),
		ManualOverride:   wallet.Ptr(true),
		ProviderDetected: wallet.Ptr(false),
		ReconnectAttempt: wallet.Ptr(0),
	})
	m.logger.Info("wallet disconnected by user")
}

// SwitchNetwork asks the wallet to switch to a chain given by ID or network
// name. The chain ID is recorded when the wallet reports the change.
func (m *Manager) SwitchNetwork(ctx context.Context, network string) bool {
	a, _ := m.current()
	if a == nil {
		m.recordError(linkerr.WithCause(linkerr.ErrNetworkSwitchRejected, linkerr.ErrNoAdapter))
		return false
	}

	chainID, err := m.networks.Resolve(network)
	if err != nil {
		m.recordError(err)
		return false
	}

	m.logger.Debug("switching to %s", m.networks.DisplayName(chainID))
	return a.SwitchNetwork(ctx, chainID)
}

// NetworkID queries the wallet's current chain as a number, 0 when unavailable.
func (m *Manager) NetworkID(ctx context.Context) uint64 {
	a, _ := m.current()
	if a == nil {
		return 0
	}
	return a.NetworkID(ctx)
}

// ForceReconnect discards the reconnection progress and connects now.
func (m *Manager) ForceReconnect(ctx context.Context) bool {
	m.logger.Info("forcing reconnection")
	m.reconnector.Reset()
	m.store.Apply(wallet.Update{ReconnectAttempt: wallet.Ptr(0)})
	return m.Connect(ctx)
}

// CancelReconnect stops automatic reconnection and clears its progress.
func (m *Manager) CancelReconnect() {
	m.reconnector.Reset()
	m.store.ApplyFunc(func(s wallet.State) (wallet.Update, bool) {
		u := wallet.Update{ReconnectAttempt: wallet.Ptr(0)}
		if s.Status == wallet.StatusReconnecting {
			u.Status = wallet.Ptr(wallet.StatusDisconnected)
		}
		return u, true
	})
	m.logger.Info("automatic reconnection cancelled")
}

// ResetManualOverride clears the manual override without connecting, which
// allows automatic reconnection again.
func (m *Manager) ResetManualOverride() {
	m.store.Apply(wallet.Update{ManualOverride: wallet.Ptr(false)})
}

// recordError stores err as the last error.
func (m *Manager) recordError(err error) {
	m.logger.Error("%v", err)
	m.store.Apply(wallet.Update{LastError: wallet.Ptr(linkerr.UserMessage(err))})
}

// Close stops reconnection, closes the adapter and removes every observer.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.detachAdapter()
	m.store.ClearObservers()
}

// State returns a snapshot of the connection state.
func (m *Manager) State() wallet.State { return m.store.State() }

// IsConnected reports whether a wallet account is connected.
func (m *Manager) IsConnected() bool { return m.store.State().IsConnected() }

// Account returns the connected account, or "".
func (m *Manager) Account() string { return m.store.State().Account }

// ChainID returns the last known chain ID, or "".
func (m *Manager) ChainID() string { return m.store.State().ChainID }

// Status returns the connection status.
func (m *Manager) Status() wallet.Status { return m.store.State().Status }

// LastError returns the most recent failure message, or "".
func (m *Manager) LastError() string { return m.store.State().LastError }

// WalletKind returns the active adapter family, or "" before Initialize.
func (m *Manager) WalletKind() wallet.Kind { return m.store.State().WalletKind }

// ManualOverride reports whether the user disconnected and automatic
// reconnection is suppressed.
func (m *Manager) ManualOverride() bool { return m.store.State().ManualOverride }

// ReconnectAttempts returns the automatic attempts made since the last success.
func (m *Manager) ReconnectAttempts() int { return m.reconnector.Attempts() }

// MaxReconnectAttempts returns the reconnection attempt limit.
func (m *Manager) MaxReconnectAttempts() int { return m.reconnector.MaxAttempts() }

// Subscribe registers o for every connection event.
func (m *Manager) Subscribe(o wallet.Observer) wallet.SubscriptionID { return m.store.Subscribe(o) }

// Unsubscribe removes the observer registered under id.
func (m *Manager) Unsubscribe(id wallet.SubscriptionID) bool { return m.store.Unsubscribe(id) }

// OnStateChange registers fn for full-state notifications.
func (m *Manager) OnStateChange(fn func(wallet.State)) func() {
	id := m.store.Subscribe(wallet.ObserverFunc(func(e wallet.Event) {
		if e.Type == wallet.EventStateChanged {
			fn(e.State)
		}
	}))
	return func() { m.store.Unsubscribe(id) }
}
