package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/connection"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/provider/providertest"
	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type watchFixture struct {
	fake   *providertest.Fake
	m      *connection.Manager
	s      *watchSession
	stdout *syncBuffer
	stderr *syncBuffer
}

func newWatchFixture(t *testing.T, format output.Format) *watchFixture {
	t.Helper()

	fake := providertest.New()
	networks, err := wallet.NewNetworks()
	require.NoError(t, err)

	m := connection.New(connection.Config{MaxReconnectAttempts: 3, ReconnectDelay: time.Millisecond},
		providertest.NewDetector(fake), connection.WithNetworks(networks))
	t.Cleanup(m.Close)

	fx := &watchFixture{fake: fake, m: m, stdout: &syncBuffer{}, stderr: &syncBuffer{}}
	fx.s = newWatchSession(m, networks, "localhost", output.NewFormatter(format, fx.stdout), fx.stderr)
	t.Cleanup(fx.s.close)

	require.True(t, m.Initialize(context.Background(), "injected"))
	return fx
}

func TestParseSupportedKind(t *testing.T) {
	t.Parallel()

	kind, err := parseSupportedKind("MetaMask")
	require.NoError(t, err)
	assert.Equal(t, wallet.KindInjected, kind)

	_, err = parseSupportedKind("walletconnect")
	require.ErrorIs(t, err, linkerr.ErrNotSupported)
	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "walletconnect", le.Details["kind"])
	assert.Equal(t, "Use --kind injected", le.Suggestion)

	_, err = parseSupportedKind("ledger")
	require.ErrorIs(t, err, linkerr.ErrInvalidInput)
}

func TestWatchSession_RendersEvents(t *testing.T) {
	t.Parallel()
	fx := newWatchFixture(t, output.FormatText)
	ctx := context.Background()

	assert.False(t, fx.s.exec(ctx, "connect"))
	require.True(t, fx.m.IsConnected())

	out := fx.stdout.String()
	assert.Contains(t, out, "● Connecting...")
	assert.Contains(t, out, "↑ connected "+wallet.ChecksumAddress(providertest.DefaultAccount))
	assert.Contains(t, out, "on Localhost 8545")

	assert.False(t, fx.s.exec(ctx, "switch sepolia"))
	assert.Equal(t, 1, fx.fake.Calls(provider.MethodSwitchChain))
	fx.fake.EmitChain("0xaa36a7")
	assert.Eventually(t, func() bool {
		return strings.Contains(fx.stdout.String(), "⇄ chain 0xaa36a7 (Sepolia Testnet)")
	}, time.Second, 5*time.Millisecond)

	assert.False(t, fx.s.exec(ctx, "disconnect"))
	assert.True(t, fx.m.ManualOverride())
	assert.Contains(t, fx.stdout.String(), "↓ disconnected")

	assert.False(t, fx.s.exec(ctx, "reset"))
	assert.False(t, fx.m.ManualOverride())
	assert.Contains(t, fx.stdout.String(), "manual disconnect cleared")
}

func TestWatchSession_Commands(t *testing.T) {
	t.Parallel()
	fx := newWatchFixture(t, output.FormatText)
	ctx := context.Background()

	assert.False(t, fx.s.exec(ctx, "   "))

	assert.False(t, fx.s.exec(ctx, "status"))
	assert.Contains(t, fx.stdout.String(), "Status:")
	assert.Contains(t, fx.stdout.String(), "Disconnected")

	assert.False(t, fx.s.exec(ctx, "networks"))
	assert.Contains(t, fx.stdout.String(), "Sepolia Testnet")
	assert.Contains(t, fx.stdout.String(), "*  localhost")

	assert.False(t, fx.s.exec(ctx, "help"))
	assert.Contains(t, fx.stdout.String(), "commands: connect, disconnect")

	assert.False(t, fx.s.exec(ctx, "stats"))
	assert.Contains(t, fx.stdout.String(), "rpc: ")
	assert.Contains(t, fx.stdout.String(), "| reconnect: ")

	assert.False(t, fx.s.exec(ctx, "switch"))
	assert.Contains(t, fx.stderr.String(), "usage: switch <network>")

	assert.False(t, fx.s.exec(ctx, "conect"))
	assert.Contains(t, fx.stderr.String(), "unknown command conect (did you mean connect?)")

	assert.False(t, fx.s.exec(ctx, "cancel"))
	assert.True(t, fx.s.exec(ctx, "QUIT"))
	assert.True(t, fx.m.ManualOverride())
}

func TestRenderStats_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := output.NewFormatter(output.FormatJSON, &buf)
	require.NoError(t, renderStats(f, metrics.Snapshot{RPCCalls: 4, Reconnects: 2}))
	assert.Contains(t, buf.String(), `"rpc_calls": 4`)
	assert.Contains(t, buf.String(), `"reconnects": 2`)
}

func TestWatchSession_SwitchUnknownNetwork(t *testing.T) {
	t.Parallel()
	fx := newWatchFixture(t, output.FormatText)
	ctx := context.Background()

	require.True(t, fx.m.Connect(ctx))
	fx.s.exec(ctx, "switch atlantis")

	assert.Equal(t, 0, fx.fake.Calls(provider.MethodSwitchChain))
	assert.NotEmpty(t, fx.m.LastError())
	assert.Contains(t, fx.stdout.String(), "Connected")
}

func TestWatchSession_RunUntilQuit(t *testing.T) {
	t.Parallel()
	fx := newWatchFixture(t, output.FormatJSON)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.s.run(context.Background(), strings.NewReader("connect\nquit\nconnect\n"))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end on quit")
	}

	assert.True(t, fx.m.ManualOverride(), "quit disconnects")
	assert.Equal(t, 1, fx.fake.Calls(provider.MethodRequestAccounts), "commands after quit are not run")

	lines := strings.Split(strings.TrimSpace(fx.stdout.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "JSON mode line: %q", line)
	}
}

func TestWatchSession_RunFollowsEventsAfterEOF(t *testing.T) {
	t.Parallel()
	fx := newWatchFixture(t, output.FormatText)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.s.run(ctx, strings.NewReader("connect\n"))
	}()

	require.Eventually(t, fx.m.IsConnected, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("session ended at end of input")
	case <-time.After(50 * time.Millisecond):
	}

	fx.fake.EmitAccounts()
	assert.Eventually(t, func() bool {
		return strings.Contains(fx.stdout.String(), "↓ disconnected")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not end on cancellation")
	}
}
