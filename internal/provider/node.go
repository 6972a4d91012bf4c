package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/walletlink/internal/metrics"
)

// Node provider defaults.
const (
	DefaultNodeRequestTimeout = 30 * time.Second
	DefaultNodeWatchInterval  = 2 * time.Second
)

// NodeConfig configures a NodeProvider.
type NodeConfig struct {
	// URL is the JSON-RPC endpoint (http, https, ws or wss).
	URL string

	// RequestTimeout bounds each forwarded request. Zero uses DefaultNodeRequestTimeout.
	RequestTimeout time.Duration

	// WatchInterval is how often the node is polled for account and chain
	// changes when head subscriptions are unavailable.
	WatchInterval time.Duration

	// Limiter throttles forwarded requests. Nil disables throttling.
	Limiter *RateLimiter

	Logger Logger
}

// NodeProvider exposes the unlocked accounts of a JSON-RPC node as an
// injected wallet provider. Account permission is tracked locally:
// eth_requestAccounts grants it and wallet_revokePermissions withdraws it.
// Account, chain and reachability changes are turned into provider events.
type NodeProvider struct {
	Emitter

	cfg    NodeConfig
	client *rpc.Client
	logger Logger

	mu        sync.Mutex
	granted   bool
	reachable bool
	accounts  []string
	chainID   string

	cancel context.CancelFunc
	done   chan struct{}
}

// DialNode connects to the node at cfg.URL and verifies it answers eth_chainId.
func DialNode(ctx context.Context, cfg NodeConfig) (*NodeProvider, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("node URL is empty") //nolint:err113 // configuration guard
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultNodeRequestTimeout
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultNodeWatchInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.URL, err)
	}

	p := &NodeProvider{
		cfg:    cfg,
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	chainID, err := ChainID(ctx, nodeRequester{p})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("probing %s: %w", cfg.URL, err)
	}
	p.chainID = chainID
	p.reachable = true
	logger.Debug("node provider ready url=%s chain=%s", cfg.URL, chainID)

	watchCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.watch(watchCtx)

	return p, nil
}

// Request forwards args to the node, answering the wallet-only methods locally.
func (p *NodeProvider) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	switch args.Method {
	case MethodRequestAccounts:
		list, err := Accounts(ctx, nodeRequester{p})
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.granted = true
		p.accounts = list
		p.mu.Unlock()
		return json.Marshal(list)

	case MethodAccounts:
		p.mu.Lock()
		granted := p.granted
		p.mu.Unlock()
		if !granted {
			return json.RawMessage("[]"), nil
		}
		return p.call(ctx, args)

	case MethodRevokePermissions:
		p.mu.Lock()
		wasGranted := p.granted
		p.granted = false
		p.accounts = nil
		p.mu.Unlock()
		if wasGranted {
			p.Emit(Message{Event: EventAccountsChanged, Accounts: []string{}})
		}
		return json.RawMessage("null"), nil

	case MethodSwitchChain:
		return p.switchChain(ctx, args)

	case MethodAddChain:
		return p.addChain(ctx, args)

	default:
		return p.call(ctx, args)
	}
}

// switchChain succeeds only for the chain the node already serves.
func (p *NodeProvider) switchChain(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	target, err := switchTarget(args.Params)
	if err != nil {
		return nil, err
	}

	current, err := ChainID(ctx, nodeRequester{p})
	if err != nil {
		return nil, err
	}
	if current != target {
		return nil, NewRPCError(CodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %q", target))
	}
	return json.RawMessage("null"), nil
}

// addChain accepts the node's own chain, which it already serves, and
// rejects any other.
func (p *NodeProvider) addChain(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	target, err := addTarget(args.Params)
	if err != nil {
		return nil, err
	}

	current, err := ChainID(ctx, nodeRequester{p})
	if err != nil {
		return nil, err
	}
	if current != target {
		return nil, NewRPCError(CodeInternalJSONRPC, fmt.Sprintf("node serves chain %s, cannot add %s", current, target))
	}
	return json.RawMessage("null"), nil
}

func addTarget(params []any) (string, error) {
	if len(params) == 1 {
		if cp, ok := params[0].(ChainParameters); ok {
			return NormalizeChainID(cp.ChainID)
		}
	}
	return switchTarget(params)
}

func switchTarget(params []any) (string, error) {
	if len(params) == 1 {
		switch v := params[0].(type) {
		case map[string]string:
			return NormalizeChainID(v["chainId"])
		case map[string]any:
			if s, ok := v["chainId"].(string); ok {
				return NormalizeChainID(s)
			}
		}
	}
	return "", NewRPCError(-32602, "expected a single {chainId} parameter")
}

// call forwards a request to the node.
func (p *NodeProvider) call(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	if p.cfg.Limiter != nil {
		if err := p.cfg.Limiter.Wait(ctx, p.cfg.URL); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	var result json.RawMessage
	start := time.Now()
	err := p.client.CallContext(ctx, &result, args.Method, args.Params...)
	metrics.Global.RecordRPCCall(time.Since(start), err)
	if err != nil {
		return nil, fromNodeError(err)
	}
	return result, nil
}

// Close stops the watcher, detaches listeners and closes the RPC client.
func (p *NodeProvider) Close() error {
	p.cancel()
	<-p.done
	p.RemoveAllListeners()
	p.client.Close()
	return nil
}

// watch follows new heads over websocket when the node supports it and
// falls back to polling otherwise. Every tick or head triggers a refresh.
func (p *NodeProvider) watch(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.WatchInterval)
	defer ticker.Stop()

	headsSupported := isWebSocket(p.cfg.URL)
	for {
		if headsSupported && p.isReachable() {
			err := p.followHeads(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, errSubscribeFailed):
				p.logger.Debug("head subscription unavailable, polling: %v", err)
				headsSupported = false
			case err != nil:
				p.setUnreachable(err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

var errSubscribeFailed = errors.New("subscribe newHeads failed")

func (p *NodeProvider) followHeads(ctx context.Context) error {
	heads := make(chan json.RawMessage, 16)
	sub, err := p.client.EthSubscribe(ctx, heads, "newHeads")
	if err != nil {
		return fmt.Errorf("%w: %w", errSubscribeFailed, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed") //nolint:err113 // terminal subscription state
			}
			return err
		case <-heads:
			p.refresh(ctx)
		}
	}
}

// refresh re-reads accounts and chain from the node and emits whatever changed.
func (p *NodeProvider) refresh(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	chainID, err := ChainID(rctx, nodeRequester{p})
	if err != nil {
		if ctx.Err() == nil {
			p.setUnreachable(err)
		}
		return
	}

	p.mu.Lock()
	granted := p.granted
	p.mu.Unlock()

	var list []string
	if granted {
		if list, err = Accounts(rctx, nodeRequester{p}); err != nil {
			if ctx.Err() == nil {
				p.setUnreachable(err)
			}
			return
		}
	}

	var events []Message
	p.mu.Lock()
	if !p.reachable {
		p.reachable = true
		events = append(events, Message{Event: EventConnect, ChainID: chainID})
	}
	if chainID != p.chainID {
		p.chainID = chainID
		events = append(events, Message{Event: EventChainChanged, ChainID: chainID})
	}
	// permission may have been revoked while the accounts call was in flight
	if granted && p.granted && !slices.Equal(list, p.accounts) {
		p.accounts = list
		events = append(events, Message{Event: EventAccountsChanged, Accounts: slices.Clone(list)})
	}
	p.mu.Unlock()

	for _, msg := range events {
		p.Emit(msg)
	}
}

func (p *NodeProvider) setUnreachable(cause error) {
	p.mu.Lock()
	was := p.reachable
	p.reachable = false
	p.mu.Unlock()

	if !was {
		return
	}
	p.logger.Error("node %s unreachable: %v", p.cfg.URL, cause)
	p.Emit(Message{
		Event: EventDisconnect,
		Err:   &RPCError{Code: CodeDisconnected, Message: "provider disconnected", Data: cause.Error()},
	})
}

func (p *NodeProvider) isReachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

func isWebSocket(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://")
}

// nodeRequester sends requests straight to the node, bypassing the local
// permission handling in Request.
type nodeRequester struct{ p *NodeProvider }

func (r nodeRequester) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	return r.p.call(ctx, args)
}

func (r nodeRequester) On(event EventName, listener Listener) func() {
	return r.p.On(event, listener)
}

func (r nodeRequester) RemoveAllListeners() { r.p.RemoveAllListeners() }
