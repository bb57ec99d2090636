package channel

import "fmt"

// HandshakeStatus is the handshake progress reported by an Engine.
type HandshakeStatus uint32

const (
	// NotHandshaking indicates that no handshake is in progress.
	NotHandshaking HandshakeStatus = iota
	// NeedWrap indicates that the engine must produce handshake data before it can continue.
	NeedWrap
	// NeedUnwrap indicates that the engine must receive handshake data from the peer.
	NeedUnwrap
	// NeedTask indicates that the engine is waiting on delegated work. Channels don't run delegated tasks.
	NeedTask
	// Finished indicates that the handshake has just completed.
	Finished
)

// IsDone returns true if the status allows application data to flow.
func (hs HandshakeStatus) IsDone() bool {
	return hs == Finished || hs == NotHandshaking
}

// String returns string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case NotHandshaking:
		return "not-handshaking"
	case NeedWrap:
		return "need-wrap"
	case NeedUnwrap:
		return "need-unwrap"
	case NeedTask:
		return "need-task"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(hs))
	}
}

// Status is the outcome of a single Wrap or Unwrap call.
type Status uint32

const (
	// StatusOK indicates that the operation completed normally.
	StatusOK Status = iota
	// StatusClosed indicates that the engine's direction is closed, e.g. a close-notify was sent or received.
	StatusClosed
	// StatusBufferUnderflow indicates that the engine couldn't make progress with the given input.
	StatusBufferUnderflow
	// StatusBufferOverflow indicates that the destination was too small for the engine's output.
	StatusBufferOverflow
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusClosed:
		return "closed"
	case StatusBufferUnderflow:
		return "buffer-underflow"
	case StatusBufferOverflow:
		return "buffer-overflow"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Result describes what a single Wrap or Unwrap call did.
type Result struct {
	Status   Status
	Consumed int // bytes consumed from the source
	Produced int // bytes written to the destination
}

func (r Result) String() string {
	return fmt.Sprintf("status=%s consumed=%d produced=%d", r.Status, r.Consumed, r.Produced)
}

// Engine is a secure-record protocol engine, e.g. a TLS implementation.
//
// The channel only orchestrates an Engine, it never interprets record bytes.
// Implementations are not required to be goroutine-safe across directions beyond
// what the channel guarantees: at most one Wrap and one Unwrap are in flight at a time.
type Engine interface {
	// HandshakeStatus returns the current handshake status.
	HandshakeStatus() HandshakeStatus

	// Unwrap decodes ciphertext from src and writes plaintext into dsts, filling
	// each destination slice in order.
	//
	// Implementations should consume ciphertext they can buffer internally even
	// when dsts have no room left. A call that neither consumes nor produces while
	// src is not empty is treated as a stall by the channel.
	Unwrap(src []byte, dsts [][]byte) (Result, error)

	// Wrap encodes plaintext taken from srcs, in order, into dst.
	//
	// With empty srcs it must still emit pending handshake or close-notify data.
	Wrap(srcs [][]byte, dst []byte) (Result, error)

	// CloseOutbound signals that no more application data will be sent. The
	// following Wrap call should emit the close-notify message.
	CloseOutbound()

	// ApplicationBufferSize returns the size of the largest application data
	// buffer the engine works with. Channels size their scratch buffers from it.
	ApplicationBufferSize() int
}

// PlaintextBuffer is implemented by engines that keep decrypted plaintext
// across Unwrap calls when the destination buffers are too small.
//
// A channel drains buffered plaintext with an empty Unwrap source before it
// reads the transport again.
type PlaintextBuffer interface {
	BufferedPlaintext() int
}
