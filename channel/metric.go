package channel

import "sync/atomic"

// Metrics contains atomic counters of a channel.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RawBytesRead indicates the number of ciphertext bytes read from the transport or consumed data.
	RawBytesRead atomic.Uint64
	// CiphertextUnwrapped indicates the number of ciphertext bytes consumed by the engine.
	CiphertextUnwrapped atomic.Uint64
	// PlaintextProduced indicates the number of plaintext bytes delivered to callers.
	PlaintextProduced atomic.Uint64

	// PlaintextConsumed indicates the number of application bytes consumed by the engine.
	PlaintextConsumed atomic.Uint64
	// CiphertextProduced indicates the number of ciphertext bytes produced by the engine.
	CiphertextProduced atomic.Uint64
	// CiphertextSent indicates the number of ciphertext bytes written to the transport.
	CiphertextSent atomic.Uint64
	// FlushCount indicates the number of ciphertext flushes to the transport.
	FlushCount atomic.Uint64

	// HandshakeAttempts indicates the number of wrap/unwrap calls issued by the handshake driver.
	HandshakeAttempts atomic.Uint64
	// StallCount indicates the number of stalled record loops.
	StallCount atomic.Uint64
}

func (m *Metrics) addRawBytesRead(n int) {
	m.RawBytesRead.Add(uint64(n))
}

func (m *Metrics) addUnwrap(r Result) {
	m.CiphertextUnwrapped.Add(uint64(r.Consumed))
	m.PlaintextProduced.Add(uint64(r.Produced))
}

func (m *Metrics) addWrap(r Result) {
	m.PlaintextConsumed.Add(uint64(r.Consumed))
	m.CiphertextProduced.Add(uint64(r.Produced))
}

func (m *Metrics) addFlush(sent int) {
	m.FlushCount.Add(1)
	m.CiphertextSent.Add(uint64(sent))
}

func (m *Metrics) incHandshakeAttempts() {
	m.HandshakeAttempts.Add(1)
}

func (m *Metrics) incStallCount() {
	m.StallCount.Add(1)
}
