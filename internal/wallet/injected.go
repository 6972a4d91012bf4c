package wallet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/walletlink/internal/provider"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// providerTimeout bounds the provider queries made from event handlers,
// the liveness poll and automatic reconnection.
const providerTimeout = 30 * time.Second

var errStale = errors.New("connection attempt superseded")

// connectCall is a connection attempt shared by concurrent callers.
type connectCall struct {
	done chan struct{}
	ok   bool
}

// InjectedAdapter drives a single injected wallet provider.
//
// Every connection epoch (ended by Disconnect or Close) has its own number.
// Work started in an earlier epoch, such as an in-flight request, a provider
// event or a fired reconnect timer, is discarded when it reaches the store.
type InjectedAdapter struct {
	cfg         Config
	detector    provider.Detector
	logger      Logger
	store       *Store
	reconnector *Reconnector
	epoch       atomic.Uint64

	mu         sync.Mutex
	prov       provider.Provider
	unsubs     []func()
	inflight   *connectCall
	pollCancel context.CancelFunc
	closed     bool
}

var _ Adapter = (*InjectedAdapter)(nil)

// NewInjectedAdapter creates an adapter that locates its provider through detector.
func NewInjectedAdapter(cfg Config, detector provider.Detector) *InjectedAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &InjectedAdapter{
		cfg:         cfg,
		detector:    detector,
		logger:      logger,
		store:       NewStore(State{WalletKind: KindInjected, ManualOverride: cfg.ManualOverride}, logger),
		reconnector: NewReconnector(cfg.ReconnectDelay, cfg.MaxReconnectAttempts),
	}
}

// Kind implements Adapter.
func (a *InjectedAdapter) Kind() Kind { return KindInjected }

// State implements Adapter.
func (a *InjectedAdapter) State() State { return a.store.State() }

// IsConnected implements Adapter.
func (a *InjectedAdapter) IsConnected() bool { return a.store.State().IsConnected() }

// Account implements Adapter.
func (a *InjectedAdapter) Account() string { return a.store.State().Account }

// ChainID implements Adapter.
func (a *InjectedAdapter) ChainID() string { return a.store.State().ChainID }

// Subscribe implements Adapter.
func (a *InjectedAdapter) Subscribe(o Observer) SubscriptionID { return a.store.Subscribe(o) }

// Unsubscribe implements Adapter.
func (a *InjectedAdapter) Unsubscribe(id SubscriptionID) bool { return a.store.Unsubscribe(id) }

// OnStateChange implements Adapter.
func (a *InjectedAdapter) OnStateChange(fn func(State)) func() {
	id := a.store.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventStateChanged {
			fn(e.State)
		}
	}))
	return func() { a.store.Unsubscribe(id) }
}

// ReconnectAttempts returns the automatic attempts made since the last success.
func (a *InjectedAdapter) ReconnectAttempts() int {
	return a.reconnector.Attempts()
}

// Connect implements Adapter.
func (a *InjectedAdapter) Connect(ctx context.Context) bool {
	return a.connect(ctx, true)
}

// Restore implements Adapter.
func (a *InjectedAdapter) Restore(ctx context.Context) bool {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return false
	}

	epoch := a.epoch.Load()
	p, err := a.ensureProvider(ctx, epoch)
	if errors.Is(err, errStale) {
		return false
	}
	if err != nil {
		a.logger.Debug("provider detection failed: %v", err)
		a.store.ApplyIf(a.sameEpoch(epoch), Update{
			ProviderDetected: Ptr(false),
			LastError:        Ptr(linkerr.UserMessage(err)),
		})
		return false
	}
	a.store.ApplyIf(a.sameEpoch(epoch), Update{ProviderDetected: Ptr(true)})

	if a.store.State().ManualOverride {
		a.logger.Debug("not restoring: manual override set")
		return false
	}

	accounts, err := provider.Accounts(ctx, p)
	if err != nil {
		a.logger.Debug("restore accounts: %v", err)
		return false
	}
	if len(accounts) == 0 {
		return false
	}
	a.onAccounts(epoch, accounts)
	if a.store.State().IsConnected() {
		a.logger.Info("restored account=%s", ShortAddress(accounts[0]))
		return true
	}
	return false
}

// Reconnect implements Adapter.
func (a *InjectedAdapter) Reconnect(ctx context.Context) bool {
	if a.store.State().ManualOverride {
		return false
	}
	return a.connect(ctx, false)
}

func (a *InjectedAdapter) connect(ctx context.Context, manual bool) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	if st := a.store.State(); st.IsConnected() && !st.ManualOverride {
		a.mu.Unlock()
		return true
	}
	if call := a.inflight; call != nil {
		a.mu.Unlock()
		select {
		case <-call.done:
			return call.ok
		case <-ctx.Done():
			return false
		}
	}
	call := &connectCall{done: make(chan struct{})}
	a.inflight = call
	epoch := a.epoch.Load()
	a.mu.Unlock()

	call.ok = a.attempt(ctx, epoch, manual)

	a.mu.Lock()
	if a.inflight == call {
		a.inflight = nil
	}
	a.mu.Unlock()
	close(call.done)

	return call.ok
}

// attempt runs one connection attempt within epoch.
func (a *InjectedAdapter) attempt(ctx context.Context, epoch uint64, manual bool) bool {
	// a manual attempt may start while the override is set, since it clears it
	pred := a.live(epoch)
	start := Update{Status: Ptr(StatusConnecting), ProviderDetected: Ptr(true)}
	if manual {
		pred = a.sameEpoch(epoch)
		start.ManualOverride = Ptr(false)
		start.ReconnectAttempt = Ptr(0)
	}

	p, err := a.ensureProvider(ctx, epoch)
	if errors.Is(err, errStale) {
		return false
	}
	if err != nil {
		a.logger.Error("provider detection failed: %v", err)
		failed := Update{
			Status:           Ptr(StatusDisconnected),
			ProviderDetected: Ptr(false),
			LastError:        Ptr(linkerr.UserMessage(err)),
		}
		if manual {
			failed.ManualOverride = Ptr(false)
		}
		a.store.ApplyIf(pred, failed)
		return false
	}

	if !a.store.ApplyIf(pred, start) {
		return false
	}

	accounts, err := provider.RequestAccounts(ctx, p)
	if err != nil {
		a.fail(epoch, rejected(linkerr.ErrRPCRejected, err))
		return false
	}
	if len(accounts) == 0 {
		a.fail(epoch, linkerr.ErrNoAccountsReturned)
		return false
	}

	chainID, err := provider.ChainID(ctx, p)
	if err != nil {
		a.fail(epoch, rejected(linkerr.ErrRPCRejected, err))
		return false
	}

	if !a.store.ApplyIf(a.live(epoch), Update{
		Status:  Ptr(StatusConnected),
		Account: Ptr(accounts[0]),
		ChainID: Ptr(chainID),
	}) {
		a.logger.Debug("discarding connection result: disconnected while in flight")
		return false
	}

	a.reconnector.Reset()
	a.startPoll(epoch)
	a.logger.Info("connected account=%s chain=%s", ShortAddress(accounts[0]), chainID)
	return true
}

func (a *InjectedAdapter) fail(epoch uint64, err error) {
	a.logger.Error("connection failed: %v", err)
	a.store.ApplyIf(a.live(epoch), Update{
		Status:    Ptr(StatusDisconnected),
		LastError: Ptr(linkerr.UserMessage(err)),
	})
}

// rejected attaches the provider's reason to sentinel.
func rejected(sentinel, err error) error {
	return linkerr.WithCause(sentinel, errors.New(provider.ErrorMessage(err))) //nolint:err113 // provider reason as cause
}

// ensureProvider returns the held provider, detecting and attaching one when none is held.
func (a *InjectedAdapter) ensureProvider(ctx context.Context, epoch uint64) (provider.Provider, error) {
	a.mu.Lock()
	p := a.prov
	a.mu.Unlock()
	if p != nil {
		return p, nil
	}

	p, err := a.detector.Detect(ctx)
	if err != nil {
		if !errors.Is(err, linkerr.ErrProviderNotDetected) {
			err = linkerr.WithCause(linkerr.ErrProviderNotDetected, err)
		}
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.epoch.Load() != epoch {
		_ = provider.Release(p)
		return nil, errStale
	}
	a.prov = p
	a.unsubs = []func(){
		p.On(provider.EventAccountsChanged, func(m provider.Message) { a.onAccounts(epoch, m.Accounts) }),
		p.On(provider.EventChainChanged, func(m provider.Message) { a.onChain(epoch, m.ChainID) }),
		p.On(provider.EventConnect, func(provider.Message) { a.onConnect(epoch) }),
		p.On(provider.EventDisconnect, func(m provider.Message) { a.onDisconnect(epoch, m.Err) }),
	}
	return p, nil
}

func (a *InjectedAdapter) currentProvider() provider.Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prov
}

// sameEpoch holds while no Disconnect or Close happened since epoch began.
func (a *InjectedAdapter) sameEpoch(epoch uint64) func(State) bool {
	return func(State) bool { return a.epoch.Load() == epoch }
}

// live additionally requires the manual override to be clear.
func (a *InjectedAdapter) live(epoch uint64) func(State) bool {
	return func(s State) bool { return a.epoch.Load() == epoch && !s.ManualOverride }
}

func (a *InjectedAdapter) onAccounts(epoch uint64, accounts []string) {
	if len(accounts) == 0 {
		a.dropped(epoch, "accounts cleared")
		return
	}

	var prev Status
	applied := a.store.ApplyIf(func(s State) bool {
		prev = s.Status
		return a.live(epoch)(s)
	}, Update{Status: Ptr(StatusConnected), Account: Ptr(accounts[0])})
	if !applied {
		a.logger.Debug("ignoring accountsChanged: manual override set")
		return
	}

	if prev != StatusConnected {
		a.reconnector.Reset()
		a.startPoll(epoch)
		if a.store.State().ChainID == "" {
			a.refreshChain(epoch)
		}
	}
}

func (a *InjectedAdapter) onChain(epoch uint64, chainID string) {
	id, err := provider.NormalizeChainID(chainID)
	if err != nil {
		a.logger.Error("ignoring chainChanged: %v", err)
		return
	}
	a.store.ApplyIf(a.sameEpoch(epoch), Update{ChainID: Ptr(id)})
}

func (a *InjectedAdapter) onConnect(epoch uint64) {
	if !a.live(epoch)(a.store.State()) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()
	a.reconcile(ctx, epoch)
}

func (a *InjectedAdapter) onDisconnect(epoch uint64, cause error) {
	a.logger.Debug("provider disconnect: %v", cause)
	a.dropped(epoch, "provider disconnected")
}

// dropped records a connection loss the user did not ask for and starts
// reconnection when the adapter was connected.
func (a *InjectedAdapter) dropped(epoch uint64, reason string) {
	var prev Status
	applied := a.store.ApplyIf(func(s State) bool {
		prev = s.Status
		return a.live(epoch)(s)
	}, Update{Status: Ptr(StatusDisconnected), LastError: Ptr(MsgWalletDisconnected)})
	if !applied {
		return
	}

	a.logger.Info("connection lost: %s", reason)
	a.stopPoll()
	if prev == StatusConnected {
		a.scheduleReconnect(epoch)
	}
}

// reconcile re-reads accounts and chain from the provider.
func (a *InjectedAdapter) reconcile(ctx context.Context, epoch uint64) {
	p := a.currentProvider()
	if p == nil {
		return
	}

	accounts, err := provider.Accounts(ctx, p)
	if err != nil {
		a.logger.Debug("reconcile accounts: %v", err)
		return
	}
	a.onAccounts(epoch, accounts)

	if len(accounts) > 0 {
		a.refreshChain(epoch)
	}
}

func (a *InjectedAdapter) refreshChain(epoch uint64) {
	p := a.currentProvider()
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()

	chainID, err := provider.ChainID(ctx, p)
	if err != nil {
		a.logger.Debug("reconcile chain: %v", err)
		return
	}
	a.onChain(epoch, chainID)
}

// startPoll starts the liveness poll unless it is running or disabled.
func (a *InjectedAdapter) startPoll(epoch uint64) {
	if a.cfg.PollInterval <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pollCancel != nil || a.closed || a.epoch.Load() != epoch {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.pollCancel = cancel
	go a.poll(ctx, epoch)
}

func (a *InjectedAdapter) stopPoll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pollCancel != nil {
		a.pollCancel()
		a.pollCancel = nil
	}
}

func (a *InjectedAdapter) poll(ctx context.Context, epoch uint64) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := a.store.State()
		if st.Status != StatusConnected || st.ManualOverride {
			continue
		}

		rctx, cancel := context.WithTimeout(ctx, providerTimeout)
		a.reconcile(rctx, epoch)
		cancel()
	}
}

// scheduleReconnect arms the next automatic attempt or, when the attempts
// are used up, records that reconnection gave up.
func (a *InjectedAdapter) scheduleReconnect(epoch uint64) {
	if !a.cfg.AutoReconnect {
		return
	}

	attempt, delay, ok := a.reconnector.Schedule(
		func(n int, d time.Duration) {
			a.logger.Info("reconnect attempt %d/%d in %s", n, a.reconnector.MaxAttempts(), d)
			a.store.ApplyIf(a.live(epoch), Update{
				Status:           Ptr(StatusReconnecting),
				ReconnectAttempt: Ptr(n),
			})
		},
		func(n int) { a.reconnectAttempt(epoch, n) },
	)
	if ok {
		a.logger.Debug("scheduled reconnect attempt %d after %s", attempt, delay)
		return
	}

	if !a.reconnector.Pending() && a.reconnector.Exhausted() {
		a.logger.Error("giving up after %d reconnect attempts", a.reconnector.Attempts())
		a.store.ApplyIf(a.live(epoch), Update{
			Status:           Ptr(StatusDisconnected),
			LastError:        Ptr(MaxReconnectMessage()),
			ReconnectAttempt: Ptr(0),
		})
	}
}

func (a *InjectedAdapter) reconnectAttempt(epoch uint64, n int) {
	if a.epoch.Load() != epoch {
		return
	}
	a.logger.Debug("reconnect attempt %d", n)

	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()

	if a.Reconnect(ctx) {
		return
	}
	if a.live(epoch)(a.store.State()) {
		a.scheduleReconnect(epoch)
	}
}

// Disconnect implements Adapter.
func (a *InjectedAdapter) Disconnect(ctx context.Context) {
	p := a.detach()

	if p != nil {
		if err := provider.RevokePermissions(ctx, p); err != nil {
			a.logger.Debug("revoke permissions: %v", err)
		}
		if err := provider.Release(p); err != nil {
			a.logger.Error("release provider: %v", err)
		}
	}

	a.store.Apply(Update{
		Status:           Ptr(StatusDisconnected),
		Account:          Ptr(""),
		ChainID:          Ptr(""),
		LastError:        Ptr(""),
		ManualOverride:   Ptr(true),
		ProviderDetected: Ptr(false),
		ReconnectAttempt: Ptr(0),
	})
	a.logger.Info("disconnected by user")
}

// detach ends the current epoch: the poll and reconnect timer stop, any
// in-flight attempt is orphaned and the provider's listeners are removed.
// It returns the provider that was held.
func (a *InjectedAdapter) detach() provider.Provider {
	a.mu.Lock()
	a.epoch.Add(1)
	if a.pollCancel != nil {
		a.pollCancel()
		a.pollCancel = nil
	}
	a.inflight = nil
	p := a.prov
	unsubs := a.unsubs
	a.prov = nil
	a.unsubs = nil
	a.mu.Unlock()

	a.reconnector.Reset()

	for _, unsub := range unsubs {
		unsub()
	}
	if p != nil {
		p.RemoveAllListeners()
	}
	return p
}

// SwitchNetwork implements Adapter.
func (a *InjectedAdapter) SwitchNetwork(ctx context.Context, chainID string) bool {
	p := a.currentProvider()
	if p == nil {
		a.store.Apply(Update{LastError: Ptr(linkerr.UserMessage(
			linkerr.WithCause(linkerr.ErrNetworkSwitchRejected, linkerr.ErrProviderNotDetected),
		))})
		return false
	}

	id, err := provider.NormalizeChainID(chainID)
	if err == nil {
		err = provider.SwitchChain(ctx, p, id)
	}
	if provider.IsUnrecognizedChain(err) {
		err = a.addAndSwitch(ctx, p, id, err)
	}
	if err != nil {
		a.logger.Error("switch network to %s: %v", chainID, err)
		a.store.Apply(Update{LastError: Ptr(linkerr.UserMessage(rejected(linkerr.ErrNetworkSwitchRejected, err)))})
		return false
	}
	return true
}

// addAndSwitch adds a configured network the wallet does not know and
// switches to it. Unconfigured chains keep the original rejection.
func (a *InjectedAdapter) addAndSwitch(ctx context.Context, p provider.Provider, chainID string, rejection error) error {
	networks := a.cfg.Networks
	if networks == nil {
		networks, _ = NewNetworks()
	}
	net, ok := networks.ByChainID(chainID)
	if !ok {
		return rejection
	}

	a.logger.Info("adding %s (%s) to the wallet", net.Name, net.ChainID)
	if err := provider.AddChain(ctx, p, net.AddChainParameters()); err != nil {
		return err
	}
	return provider.SwitchChain(ctx, p, chainID)
}

// NetworkID implements Adapter.
func (a *InjectedAdapter) NetworkID(ctx context.Context) uint64 {
	p := a.currentProvider()
	if p == nil {
		return 0
	}
	chainID, err := provider.ChainID(ctx, p)
	if err != nil {
		a.logger.Debug("network id: %v", err)
		return 0
	}
	id, err := hexutil.DecodeUint64(chainID)
	if err != nil {
		return 0
	}
	return id
}

// Close implements Adapter.
func (a *InjectedAdapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if p := a.detach(); p != nil {
		if err := provider.Release(p); err != nil {
			a.logger.Error("release provider: %v", err)
		}
	}
	a.store.ClearObservers()
}
