// Package providertest provides a scripted in-memory wallet provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mrz1836/walletlink/internal/provider"
)

// Default values served by a new Fake.
const (
	DefaultAccount = "0x1234567890abcdef1234567890abcdef12345678"
	DefaultChainID = "0x7a69"
)

// Handler answers a single request.
type Handler func(ctx context.Context, args provider.RequestArguments) (any, error)

// Fake is an in-memory provider. By default it grants DefaultAccount on
// eth_requestAccounts, reports DefaultChainID and accepts chain switches.
// Like a real wallet, eth_accounts is empty until access was granted by
// eth_requestAccounts or Authorize, and wallet_revokePermissions takes it
// back. Individual methods can be overridden, failed or held open.
type Fake struct {
	provider.Emitter

	mu       sync.Mutex
	accounts []string
	chainID  string
	granted  bool
	unknown  map[string]bool
	added    []provider.ChainParameters
	handlers map[string]Handler
	holds    map[string]chan struct{}
	entered  map[string]chan struct{}
	calls    map[string]int
	closed   bool
}

// New creates a Fake with the default account and chain.
func New() *Fake {
	return &Fake{
		accounts: []string{DefaultAccount},
		chainID:  DefaultChainID,
		unknown:  make(map[string]bool),
		handlers: make(map[string]Handler),
		holds:    make(map[string]chan struct{}),
		entered:  make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

// SetAccounts changes the accounts served by account requests.
func (f *Fake) SetAccounts(accounts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = slices.Clone(accounts)
}

// SetChainID changes the chain served by eth_chainId.
func (f *Fake) SetChainID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = id
}

// Authorize grants account access as if the user had approved it earlier.
func (f *Fake) Authorize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = true
}

// Granted reports whether account access is currently granted.
func (f *Fake) Granted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

// SetUnknownChains makes switches to ids fail with 4902 until each chain
// is added with wallet_addEthereumChain.
func (f *Fake) SetUnknownChains(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.unknown[id] = true
	}
}

// AddedChains returns the chains added with wallet_addEthereumChain, in order.
func (f *Fake) AddedChains() []provider.ChainParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.added)
}

// Handle overrides the answer for method.
func (f *Fake) Handle(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Fail makes every call to method return err.
func (f *Fake) Fail(method string, err error) {
	f.Handle(method, func(context.Context, provider.RequestArguments) (any, error) {
		return nil, err
	})
}

// Restore removes any override for method.
func (f *Fake) Restore(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, method)
}

// Hold makes calls to method block until the returned release function is
// called. The returned channel is closed once the first held call has started.
func (f *Fake) Hold(method string) (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	in := make(chan struct{})
	f.holds[method] = gate
	f.entered[method] = in

	var once sync.Once
	return in, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.holds, method)
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times method was requested.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the provider released.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Request implements provider.Provider.
func (f *Fake) Request(ctx context.Context, args provider.RequestArguments) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[args.Method]++
	gate := f.holds[args.Method]
	if in, ok := f.entered[args.Method]; ok {
		delete(f.entered, args.Method)
		close(in)
	}
	h := f.handlers[args.Method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var (
		result any
		err    error
	)
	if h != nil {
		result, err = h(ctx, args)
	} else {
		result, err = f.defaultAnswer(args)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (f *Fake) defaultAnswer(args provider.RequestArguments) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch args.Method {
	case provider.MethodRequestAccounts:
		f.granted = true
		return slices.Clone(f.accounts), nil
	case provider.MethodAccounts:
		if !f.granted {
			return []string{}, nil
		}
		return slices.Clone(f.accounts), nil
	case provider.MethodChainID:
		return f.chainID, nil
	case provider.MethodSwitchChain:
		if len(args.Params) == 1 {
			if m, ok := args.Params[0].(map[string]string); ok {
				if f.unknown[m["chainId"]] {
					return nil, provider.NewRPCError(provider.CodeUnrecognizedChain, "Unrecognized chain ID "+m["chainId"])
				}
				f.chainID = m["chainId"]
			}
		}
		return nil, nil
	case provider.MethodAddChain:
		if len(args.Params) == 1 {
			if cp, ok := args.Params[0].(provider.ChainParameters); ok {
				f.added = append(f.added, cp)
				delete(f.unknown, cp.ChainID)
			}
		}
		return nil, nil
	case provider.MethodRevokePermissions:
		f.granted = false
		return nil, nil
	default:
		return nil, provider.NewRPCError(provider.CodeUnsupportedMethod, "unsupported method "+args.Method)
	}
}

// EmitAccounts fires accountsChanged.
func (f *Fake) EmitAccounts(accounts ...string) {
	f.Emit(provider.Message{Event: provider.EventAccountsChanged, Accounts: accounts})
}

// EmitChain fires chainChanged.
func (f *Fake) EmitChain(id string) {
	f.Emit(provider.Message{Event: provider.EventChainChanged, ChainID: id})
}

// EmitConnect fires connect.
func (f *Fake) EmitConnect(id string) {
	f.Emit(provider.Message{Event: provider.EventConnect, ChainID: id})
}

// EmitDisconnect fires disconnect with a 4900 error.
func (f *Fake) EmitDisconnect() {
	f.Emit(provider.Message{
		Event: provider.EventDisconnect,
		Err:   provider.NewRPCError(provider.CodeDisconnected, "provider disconnected"),
	})
}

// Detector returns detectors handing out fakes.
type Detector struct {
	mu       sync.Mutex
	next     []*Fake
	last     *Fake
	err      error
	detected atomic.Int32
}

// NewDetector returns a detector that hands out f on every call.
func NewDetector(f *Fake) *Detector {
	return &Detector{last: f}
}

// Queue makes the following detections return fakes in order, then the last one repeatedly.
func (d *Detector) Queue(fakes ...*Fake) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = append(d.next, fakes...)
}

// SetError makes detection fail with err until cleared with nil.
func (d *Detector) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Detected returns how many successful detections happened.
func (d *Detector) Detected() int {
	return int(d.detected.Load())
}

// Current returns the fake handed out by the latest detection.
func (d *Detector) Current() *Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Detect implements provider.Detector.
func (d *Detector) Detect(context.Context) (provider.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	if len(d.next) > 0 {
		d.last = d.next[0]
		d.next = d.next[1:]
	}
	if d.last == nil {
		d.last = New()
	}
	d.detected.Add(1)
	return d.last, nil
}
