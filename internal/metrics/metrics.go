// Package metrics counts provider calls and connection lifecycle activity.
// Counters are atomic so providers, adapters and the manager can record from
// any goroutine.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds the process counters.
type Metrics struct {
	// Provider RPC
	rpcCalls        atomic.Int64
	rpcErrors       atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Connection lifecycle
	connects            atomic.Int64
	connectFailures     atomic.Int64
	reconnects          atomic.Int64
	reconnectFailures   atomic.Int64
	reconnectsExhausted atomic.Int64
}

// Global is the process-wide metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records one provider request and its outcome.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCalls.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.rpcErrors.Add(1)
	}
}

// RecordConnect records a user-initiated connection attempt.
func (m *Metrics) RecordConnect(ok bool) {
	m.connects.Add(1)
	if !ok {
		m.connectFailures.Add(1)
	}
}

// RecordReconnect records an automatic reconnection attempt.
func (m *Metrics) RecordReconnect(ok bool) {
	m.reconnects.Add(1)
	if !ok {
		m.reconnectFailures.Add(1)
	}
}

// RecordReconnectExhausted records that automatic reconnection gave up.
func (m *Metrics) RecordReconnectExhausted() {
	m.reconnectsExhausted.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RPCCalls            int64   `json:"rpc_calls"`
	RPCErrors           int64   `json:"rpc_errors"`
	RPCLatencyAvgMs     float64 `json:"rpc_latency_avg_ms"`
	Connects            int64   `json:"connects"`
	ConnectFailures     int64   `json:"connect_failures"`
	Reconnects          int64   `json:"reconnects"`
	ReconnectFailures   int64   `json:"reconnect_failures"`
	ReconnectsExhausted int64   `json:"reconnects_exhausted"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCalls:            m.rpcCalls.Load(),
		RPCErrors:           m.rpcErrors.Load(),
		RPCLatencyAvgMs:     m.RPCLatencyAvgMs(),
		Connects:            m.connects.Load(),
		ConnectFailures:     m.connectFailures.Load(),
		Reconnects:          m.reconnects.Load(),
		ReconnectFailures:   m.reconnectFailures.Load(),
		ReconnectsExhausted: m.reconnectsExhausted.Load(),
	}
}

// RPCLatencyAvgMs returns the mean provider request latency in milliseconds,
// 0 before the first call.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCalls.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.rpcLatencyNanos.Load()) / float64(calls) / 1e6
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.rpcCalls, &m.rpcErrors, &m.rpcLatencyNanos,
		&m.connects, &m.connectFailures,
		&m.reconnects, &m.reconnectFailures, &m.reconnectsExhausted,
	} {
		c.Store(0)
	}
}
