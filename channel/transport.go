package channel

import "io"

// Transport is the raw duplex byte stream under a Channel.
//
// Read and Write follow io.Reader/io.Writer, except that a non-blocking
// transport returns (0, nil) from Read when nothing is ready and may return a
// short count with a nil error from Write.
type Transport interface {
	io.Reader
	io.Writer

	// Available returns the number of bytes that can be read without blocking.
	Available() (int, error)
	// CloseRead shuts down the reading side.
	CloseRead() error
	// CloseWrite shuts down the writing side.
	CloseWrite() error
	// Close releases the transport.
	Close() error
}

// ParentChannel is a Transport that owns its blocking mode and connection setup,
// e.g. an adapted net.Conn.
type ParentChannel interface {
	Transport

	// IsBlocking reports whether Read and Write may block.
	IsBlocking() bool
	// SetBlocking switches the blocking mode.
	SetBlocking(block bool) error
	// FinishConnect returns true once the parent's own connection is established.
	FinishConnect() (bool, error)
}

// Underlying describes how a Channel is attached to its transport.
//
// It is either Standalone or Layered.
type Underlying interface {
	transport() Transport
	isUnderlying()
}

// Standalone attaches a Channel directly to a raw Transport.
//
// A standalone channel is always blocking.
type Standalone struct {
	Transport Transport
}

func (s Standalone) transport() Transport { return s.Transport }
func (Standalone) isUnderlying()          {}

// Layered attaches a Channel on top of a ParentChannel. The blocking mode and
// connection completion are delegated to the parent.
type Layered struct {
	Parent ParentChannel
}

func (l Layered) transport() Transport { return l.Parent }
func (Layered) isUnderlying()          {}
