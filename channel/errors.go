package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("channel config is nil")

	// ErrEngineNil indicates that a nil Engine was provided.
	ErrEngineNil = errors.New("engine is nil")

	// ErrTransportNil indicates that the underlying transport or parent channel is nil.
	ErrTransportNil = errors.New("underlying transport is nil")

	// ErrInvalidBufferSize indicates that the engine reported a non-positive application buffer size.
	ErrInvalidBufferSize = errors.New("engine application buffer size must be positive")
)

var (
	// ErrChannelClosed is returned by FinishConnect after Close.
	ErrChannelClosed = errors.New("channel closed")

	// ErrOutboundClosed is returned by writes after the outbound direction is closed.
	ErrOutboundClosed = errors.New("outbound direction closed")

	// ErrBlockingModeFixed indicates that a standalone channel can't leave blocking mode.
	ErrBlockingModeFixed = errors.New("blocking mode of a standalone channel can't be changed")

	// ErrHandshakeIncomplete is returned by writes of application data before the handshake finished.
	ErrHandshakeIncomplete = errors.New("handshake not finished")

	// ErrConsumedDataSet indicates that consumed data was already injected into the channel.
	ErrConsumedDataSet = errors.New("consumed data already set")
)

var (
	// ErrStalled matches every *StallError.
	ErrStalled = errors.New("record loop stalled")

	// ErrProtocolStatus matches every *ProtocolStatusError.
	ErrProtocolStatus = errors.New("unexpected engine status")

	// ErrHandshakeTimeout matches every *HandshakeTimeoutError.
	ErrHandshakeTimeout = errors.New("handshake attempts exceeded")

	// ErrBounds matches every *BoundsError.
	ErrBounds = errors.New("buffer offset or count out of range")
)

// StallError reports a wrap or unwrap iteration that made no progress while
// input was still pending.
type StallError struct {
	Op    string // "wrap" or "unwrap"
	Done  int64  // bytes moved so far
	Total int64  // bytes that had to be moved
	Sent  int64  // ciphertext bytes flushed so far, wrap only
}

func (e *StallError) Error() string {
	if e.Op == "wrap" {
		return fmt.Sprintf("calls to wrap or write stalled, consuming and producing no data: wrapped %d of %d bytes, sent %d bytes to peer",
			e.Done, e.Total, e.Sent)
	}

	return fmt.Sprintf("calls to unwrap stalled, consuming and producing no data: unwrapped %d of %d bytes",
		e.Done, e.Total)
}

func (e *StallError) Is(target error) bool { return target == ErrStalled }

// ProtocolStatusError reports an engine status outside of {OK, Closed}, or an
// unexpected handshake status while driving the handshake.
type ProtocolStatusError struct {
	Op              string
	Result          Result
	HandshakeStatus HandshakeStatus
}

func (e *ProtocolStatusError) Error() string {
	if e.Op == "handshake" {
		return fmt.Sprintf("error attempting to handshake: unknown handshake status %s", e.HandshakeStatus)
	}

	return fmt.Sprintf("unexpected status from %s: %s", e.Op, e.Result)
}

func (e *ProtocolStatusError) Is(target error) bool { return target == ErrProtocolStatus }

// HandshakeTimeoutError reports that a blocking handshake didn't finish within
// its attempt bound.
type HandshakeTimeoutError struct {
	Attempts int
	Status   HandshakeStatus
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("unable to complete handshake in %d calls to wrap or unwrap (last status %s), connection stalled",
		e.Attempts, e.Status)
}

func (e *HandshakeTimeoutError) Is(target error) bool { return target == ErrHandshakeTimeout }

// BoundsError reports an offset/count pair that exceeds the given buffer array.
type BoundsError struct {
	Offset  int
	Count   int
	Buffers int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("offset (%d) or count (%d) exceeds the number of buffers given (%d)",
		e.Offset, e.Count, e.Buffers)
}

func (e *BoundsError) Is(target error) bool { return target == ErrBounds }
