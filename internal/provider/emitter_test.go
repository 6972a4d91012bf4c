package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/walletlink/internal/provider"
)

func TestEmitter_OrderAndUnsubscribe(t *testing.T) {
	t.Parallel()
	var e provider.Emitter
	var got []string

	e.On(provider.EventChainChanged, func(m provider.Message) { got = append(got, "first:"+m.ChainID) })
	off := e.On(provider.EventChainChanged, func(m provider.Message) { got = append(got, "second:"+m.ChainID) })
	e.On(provider.EventConnect, func(provider.Message) { got = append(got, "connect") })

	e.Emit(provider.Message{Event: provider.EventChainChanged, ChainID: "0x1"})
	assert.Equal(t, []string{"first:0x1", "second:0x1"}, got)

	off()
	off()
	got = nil
	e.Emit(provider.Message{Event: provider.EventChainChanged, ChainID: "0x2"})
	assert.Equal(t, []string{"first:0x2"}, got)
	assert.Equal(t, 1, e.ListenerCount(provider.EventChainChanged))
}

func TestEmitter_ListenerMayUnsubscribeItself(t *testing.T) {
	t.Parallel()
	var e provider.Emitter
	calls := 0

	var off func()
	off = e.On(provider.EventDisconnect, func(provider.Message) {
		calls++
		off()
	})

	e.Emit(provider.Message{Event: provider.EventDisconnect})
	e.Emit(provider.Message{Event: provider.EventDisconnect})
	assert.Equal(t, 1, calls)
}

func TestEmitter_RemoveAllListeners(t *testing.T) {
	t.Parallel()
	var e provider.Emitter
	calls := 0
	e.On(provider.EventAccountsChanged, func(provider.Message) { calls++ })
	e.On(provider.EventChainChanged, func(provider.Message) { calls++ })

	e.RemoveAllListeners()
	e.Emit(provider.Message{Event: provider.EventAccountsChanged})
	e.Emit(provider.Message{Event: provider.EventChainChanged})

	assert.Zero(t, calls)
	assert.Zero(t, e.ListenerCount(provider.EventAccountsChanged))
}
