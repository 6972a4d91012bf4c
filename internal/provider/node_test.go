package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/provider"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

const testAccount = "0x742d35cc6634c0532925a3b844bc454e4438f44e"

// fakeNode is a minimal stateful JSON-RPC node.
type fakeNode struct {
	mu       sync.Mutex
	chainID  string
	accounts []string
	down     bool
	methods  []string
}

func (n *fakeNode) set(fn func(n *fakeNode)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n)
}

func (n *fakeNode) served(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n.methods = append(n.methods, req.Method)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = n.chainID
	case "eth_accounts":
		resp["result"] = n.accounts
	case "eth_blockNumber":
		resp["result"] = "0x10"
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "the method " + req.Method + " does not exist/is not available"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	node := &fakeNode{chainID: "0x7a69", accounts: []string{testAccount}}
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)
	return node, server
}

func dial(t *testing.T, url string) *provider.NodeProvider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := provider.DialNode(ctx, provider.NodeConfig{
		URL:            url,
		RequestTimeout: time.Second,
		WatchInterval:  20 * time.Millisecond,
		Limiter:        provider.NewRateLimiter(0, 1),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// recorder collects provider messages.
type recorder struct {
	mu   sync.Mutex
	msgs []provider.Message
}

func (r *recorder) listen(p provider.Provider, events ...provider.EventName) {
	for _, e := range events {
		p.On(e, func(m provider.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.msgs = append(r.msgs, m)
		})
	}
}

func (r *recorder) has(event provider.EventName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Event == event {
			return true
		}
	}
	return false
}

func (r *recorder) last(event provider.EventName) (provider.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Event == event {
			return r.msgs[i], true
		}
	}
	return provider.Message{}, false
}

func TestDialNode(t *testing.T) {
	t.Parallel()

	t.Run("checks chain id on dial", func(t *testing.T) {
		t.Parallel()
		node, server := newNode(t)
		dial(t, server.URL)
		assert.Equal(t, 1, node.served("eth_chainId"))
	})

	t.Run("unreachable node fails", func(t *testing.T) {
		t.Parallel()
		node, server := newNode(t)
		node.set(func(n *fakeNode) { n.down = true })

		_, err := provider.DialNode(context.Background(), provider.NodeConfig{URL: server.URL, RequestTimeout: time.Second})
		require.Error(t, err)
	})

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := provider.DialNode(context.Background(), provider.NodeConfig{})
		require.Error(t, err)
	})
}

func TestNodeDetector(t *testing.T) {
	t.Parallel()

	node, server := newNode(t)
	node.set(func(n *fakeNode) { n.down = true })

	_, err := provider.NodeDetector{Config: provider.NodeConfig{URL: server.URL}}.Detect(context.Background())
	require.ErrorIs(t, err, linkerr.ErrProviderNotDetected)

	node.set(func(n *fakeNode) { n.down = false })
	p, err := provider.NodeDetector{Config: provider.NodeConfig{URL: server.URL}}.Detect(context.Background())
	require.NoError(t, err)
	require.NoError(t, provider.Release(p))
}

func TestNodeProvider_AccountPermission(t *testing.T) {
	t.Parallel()
	_, server := newNode(t)
	p := dial(t, server.URL)
	ctx := context.Background()

	accounts, err := provider.Accounts(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, accounts, "accounts are hidden until requested")

	accounts, err = provider.RequestAccounts(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)

	accounts, err = provider.Accounts(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)

	rec := &recorder{}
	rec.listen(p, provider.EventAccountsChanged)
	require.NoError(t, provider.RevokePermissions(ctx, p))

	msg, ok := rec.last(provider.EventAccountsChanged)
	require.True(t, ok)
	assert.Empty(t, msg.Accounts)

	accounts, err = provider.Accounts(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestNodeProvider_SwitchChain(t *testing.T) {
	t.Parallel()
	_, server := newNode(t)
	p := dial(t, server.URL)
	ctx := context.Background()

	require.NoError(t, provider.SwitchChain(ctx, p, "0x7a69"))

	err := provider.SwitchChain(ctx, p, "0x1")
	rerr, ok := provider.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, provider.CodeUnrecognizedChain, rerr.Code)

	_, err = p.Request(ctx, provider.RequestArguments{Method: provider.MethodSwitchChain})
	require.Error(t, err)
}

func TestNodeProvider_AddChain(t *testing.T) {
	t.Parallel()
	_, server := newNode(t)
	p := dial(t, server.URL)
	ctx := context.Background()

	require.NoError(t, provider.AddChain(ctx, p, provider.ChainParameters{
		ChainID:        "0x7A69",
		ChainName:      "Localhost 8545",
		NativeCurrency: provider.Ether,
		RPCURLs:        []string{server.URL},
	}))

	err := provider.AddChain(ctx, p, provider.ChainParameters{ChainID: "0x1", ChainName: "Ethereum Mainnet"})
	rerr, ok := provider.AsRPCError(err)
	require.True(t, ok)
	assert.Contains(t, rerr.Message, "cannot add 0x1")

	_, err = p.Request(ctx, provider.RequestArguments{Method: provider.MethodAddChain})
	require.Error(t, err)
}

func TestNodeProvider_ForwardsErrors(t *testing.T) {
	t.Parallel()
	_, server := newNode(t)
	p := dial(t, server.URL)

	raw, err := p.Request(context.Background(), provider.RequestArguments{Method: "eth_blockNumber"})
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(raw))

	_, err = p.Request(context.Background(), provider.RequestArguments{Method: "eth_sendTransaction"})
	rerr, ok := provider.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, provider.CodeUnsupportedMethod, rerr.Code)
	assert.Contains(t, rerr.Message, "does not exist")
}

func TestNodeProvider_WatchEmitsChanges(t *testing.T) {
	t.Parallel()
	node, server := newNode(t)
	p := dial(t, server.URL)

	_, err := provider.RequestAccounts(context.Background(), p)
	require.NoError(t, err)

	rec := &recorder{}
	rec.listen(p, provider.EventAccountsChanged, provider.EventChainChanged,
		provider.EventConnect, provider.EventDisconnect)

	node.set(func(n *fakeNode) { n.chainID = "0xaa36a7" })
	require.Eventually(t, func() bool {
		msg, ok := rec.last(provider.EventChainChanged)
		return ok && msg.ChainID == "0xaa36a7"
	}, 2*time.Second, 10*time.Millisecond)

	node.set(func(n *fakeNode) { n.accounts = []string{} })
	require.Eventually(t, func() bool {
		msg, ok := rec.last(provider.EventAccountsChanged)
		return ok && len(msg.Accounts) == 0
	}, 2*time.Second, 10*time.Millisecond)

	node.set(func(n *fakeNode) { n.down = true })
	require.Eventually(t, func() bool { return rec.has(provider.EventDisconnect) }, 2*time.Second, 10*time.Millisecond)

	msg, _ := rec.last(provider.EventDisconnect)
	rerr, ok := provider.AsRPCError(msg.Err)
	require.True(t, ok)
	assert.Equal(t, provider.CodeDisconnected, rerr.Code)

	node.set(func(n *fakeNode) { n.down = false })
	require.Eventually(t, func() bool { return rec.has(provider.EventConnect) }, 2*time.Second, 10*time.Millisecond)
}
