package connection

import (
	"context"
	"time"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/wallet"
)

func (m *Manager) onAdapterEvent(gen uint64, e wallet.Event) {
	switch e.Type {
	case wallet.EventStateChanged:
		m.mirrorState(gen, e.State)
	case wallet.EventError:
		m.mirrorError(gen, e.Error)
	case wallet.EventConnected, wallet.EventDisconnected, wallet.EventChainChanged:
		// derived again by the manager's store
	}
}

// mirrorState applies what changed in the adapter's state since its last
// notification, through the gate.
func (m *Manager) mirrorState(gen uint64, next wallet.State) {
	m.mu.Lock()
	if m.gen.Load() != gen {
		m.mu.Unlock()
		return
	}
	prev := m.seen
	m.seen = next
	m.errMirrored = next.LastError != "" && next.LastError != prev.LastError
	m.mu.Unlock()

	u := diff(prev, next)
	if u.IsZero() {
		return
	}

	var before wallet.State
	after, applied := m.store.ApplyFunc(func(s wallet.State) (wallet.Update, bool) {
		if m.gen.Load() != gen {
			return wallet.Update{}, false
		}
		before = s
		gated := m.gate(s, u)
		return gated, !gated.IsZero()
	})
	if !applied {
		return
	}

	switch {
	case after.Status == wallet.StatusConnected && before.Status != wallet.StatusConnected:
		m.reconnector.Reset()
		m.logger.Info("connected account=%s chain=%s", wallet.ShortAddress(after.Account), after.ChainID)
	case before.Status == wallet.StatusConnected && after.Status == wallet.StatusDisconnected &&
		!after.ManualOverride && !next.ManualOverride:
		m.logger.Info("connection lost: %s", after.LastError)
		m.scheduleReconnect(gen)
	}
}

// mirrorError records an error the adapter reported without changing its
// state, such as a repeated failure.
func (m *Manager) mirrorError(gen uint64, msg string) {
	m.mu.Lock()
	if m.gen.Load() != gen {
		m.mu.Unlock()
		return
	}
	if m.errMirrored {
		m.errMirrored = false
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.store.ApplyIf(func(wallet.State) bool { return m.gen.Load() == gen }, wallet.Update{LastError: wallet.Ptr(msg)})
}

// diff returns the fields of next that differ from prev. The adapter's
// manual override and reconnect attempt are never mirrored: the manager owns them.
func diff(prev, next wallet.State) wallet.Update {
	var u wallet.Update
	if next.Status != prev.Status {
		u.Status = wallet.Ptr(next.Status)
	}
	if next.Account != prev.Account {
		u.Account = wallet.Ptr(next.Account)
	}
	if next.ChainID != prev.ChainID {
		u.ChainID = wallet.Ptr(next.ChainID)
	}
	if next.LastError != prev.LastError {
		u.LastError = wallet.Ptr(next.LastError)
	}
	if next.ProviderDetected != prev.ProviderDetected {
		u.ProviderDetected = wallet.Ptr(next.ProviderDetected)
	}
	return u
}

// raises reports whether entering status means the wallet is, or is about
// to be, connected.
func raises(status wallet.Status) bool {
	return status != wallet.StatusDisconnected
}

// gate removes the parts of u that s does not allow: anything raising
// connectivity while the manual override is set, and status changes
// outside the state machine. It runs under the store lock.
func (m *Manager) gate(s wallet.State, u wallet.Update) wallet.Update {
	if u.Status != nil && *u.Status != s.Status {
		switch {
		case s.ManualOverride && raises(*u.Status):
			m.logger.Debug("dropping %s from adapter: manual override set", *u.Status)
			u.Status, u.Account = nil, nil
		case !wallet.CanTransition(s.Status, *u.Status):
			m.logger.Debug("dropping transition %s -> %s", s.Status, *u.Status)
			u.Status, u.Account = nil, nil
		}
	}
	if s.ManualOverride && u.Account != nil && *u.Account != "" {
		u.Account = nil
	}
	return u
}

// scheduleReconnect arms the next automatic attempt or, when the attempts
// are used up, records that reconnection gave up.
func (m *Manager) scheduleReconnect(gen uint64) {
	if !m.cfg.AutoReconnect {
		return
	}

	_, _, ok := m.reconnector.Schedule(
		func(n int, d time.Duration) {
			m.logger.Info("reconnecting: attempt %d/%d in %s", n, m.reconnector.MaxAttempts(), d)
			m.store.ApplyIf(func(s wallet.State) bool {
				return m.live(gen)(s) && wallet.CanTransition(s.Status, wallet.StatusReconnecting)
			}, wallet.Update{
				Status:           wallet.Ptr(wallet.StatusReconnecting),
				ReconnectAttempt: wallet.Ptr(n),
			})
		},
		func(n int) { m.reconnectAttempt(gen, n) },
	)
	if ok || m.reconnector.Pending() || !m.reconnector.Exhausted() {
		return
	}

	m.logger.Error("giving up after %d reconnect attempts", m.reconnector.Attempts())
	metrics.Global.RecordReconnectExhausted()
	m.store.ApplyIf(m.live(gen), wallet.Update{
		Status:           wallet.Ptr(wallet.StatusDisconnected),
		LastError:        wallet.Ptr(wallet.MaxReconnectMessage()),
		ReconnectAttempt: wallet.Ptr(0),
	})
}

func (m *Manager) reconnectAttempt(gen uint64, n int) {
	a, cur := m.current()
	if a == nil || cur != gen || !m.live(gen)(m.store.State()) {
		return
	}
	m.logger.Debug("reconnect attempt %d", n)

	ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
	defer cancel()

	ok := a.Reconnect(ctx)
	m.sync(gen, a)
	metrics.Global.RecordReconnect(ok)
	if ok {
		m.reconnector.Reset()
		return
	}
	if m.live(gen)(m.store.State()) {
		m.scheduleReconnect(gen)
	}
}
