package channel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-sslchannel/internal/util"
	"github.com/arloliu/go-sslchannel/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// EOF is the count returned by ReadBuffers and WriteBuffers once the respective
// direction is closed.
const EOF = -1

// Channel is a full-duplex encrypted byte channel layered on a raw transport.
//
// Reads and writes are serialized per direction: one goroutine may read while
// another writes, but concurrent calls on the same direction wait for each other.
// The channel starts no goroutines; all work happens on the caller's goroutine.
//
// Closing a channel while another goroutine is blocked in a read or write of
// the same direction is not supported, the outcome depends on the transport.
type Channel struct {
	cfg        *Config
	logger     logger.Logger
	engine     Engine
	underlying Underlying
	transport  Transport

	readMu   sync.Mutex
	readBuf  []byte
	consumed consumedBridge

	writeMu  sync.Mutex
	writeBuf []byte
	pending  []byte // ciphertext a non-blocking transport didn't accept yet

	dirs      directions
	opState   atomicOpState
	autoClose atomic.Bool

	handshakeDone atomic.Bool
	handlers      *xsync.MapOf[uint64, HandshakeCompletedHandler]
	handlerSeq    atomic.Uint64

	metrics Metrics
}

// ensure Channel implements io.ReadWriteCloser.
var _ io.ReadWriteCloser = (*Channel)(nil)

// New creates a Channel over the given underlying transport and engine.
//
// The read and write scratch buffers are sized from engine.ApplicationBufferSize().
// Returns an error if any argument is nil or the engine reports an invalid buffer size.
func New(u Underlying, engine Engine, cfg *Config) (*Channel, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if engine == nil {
		return nil, ErrEngineNil
	}

	if u == nil {
		return nil, ErrTransportNil
	}
	t := u.transport()
	if t == nil {
		return nil, ErrTransportNil
	}

	size := engine.ApplicationBufferSize()
	if size <= 0 {
		return nil, ErrInvalidBufferSize
	}

	c := &Channel{
		cfg:        cfg,
		logger:     cfg.Logger(),
		engine:     engine,
		underlying: u,
		transport:  t,
		readBuf:    make([]byte, size),
		writeBuf:   make([]byte, size),
		handlers:   xsync.NewMapOf[uint64, HandshakeCompletedHandler](),
	}
	c.autoClose.Store(cfg.AutoClose())

	return c, nil
}

// Underlying returns how the channel is attached to its transport.
func (c *Channel) Underlying() Underlying {
	return c.underlying
}

// Logger returns the logger of the channel.
func (c *Channel) Logger() logger.Logger {
	return c.logger
}

// Metrics returns the metrics of the channel.
func (c *Channel) Metrics() *Metrics {
	return &c.metrics
}

// HandshakeStatus returns the engine's current handshake status.
func (c *Channel) HandshakeStatus() HandshakeStatus {
	return c.engine.HandshakeStatus()
}

// SetConsumedData gives the channel bytes that were already read from the
// transport before the channel existed, e.g. while sniffing the first record.
// They are unwrapped before any byte read from the live transport.
//
// It can be called once per channel; later calls return ErrConsumedDataSet.
// A nil or empty source is ignored.
func (c *Channel) SetConsumedData(src ConsumedSource) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	return c.consumed.set(src)
}

// SetConsumedBytes is SetConsumedData with a copy of data.
func (c *Channel) SetConsumedBytes(data []byte) error {
	return c.SetConsumedData(newBytesSource(data))
}

// SetAutoClose sets whether Close also shuts down and closes the underlying
// transport or parent channel.
func (c *Channel) SetAutoClose(on bool) {
	c.autoClose.Store(on)
}

// IsBlocking reports whether the channel may block the caller.
//
// Standalone channels are always blocking; layered channels follow their parent.
func (c *Channel) IsBlocking() bool {
	switch u := c.underlying.(type) {
	case Standalone:
		return true
	case Layered:
		return u.Parent.IsBlocking()
	default:
		return true
	}
}

// SetBlocking configures the blocking mode.
//
// Standalone channels only accept blocking mode and return ErrBlockingModeFixed
// otherwise. Layered channels delegate to the parent.
func (c *Channel) SetBlocking(block bool) error {
	switch u := c.underlying.(type) {
	case Standalone:
		if !block {
			return ErrBlockingModeFixed
		}

		return nil
	case Layered:
		return u.Parent.SetBlocking(block)
	default:
		return ErrTransportNil
	}
}

// State returns the lifecycle state of the channel.
func (c *Channel) State() OpState {
	return c.opState.Get()
}

// IsOpen returns true until Close is called.
func (c *Channel) IsOpen() bool {
	return c.opState.IsOpened()
}

// IsInboundClosed returns true once the inbound direction is closed.
func (c *Channel) IsInboundClosed() bool {
	return c.dirs.isInboundClosed()
}

// IsOutboundClosed returns true once the outbound direction is closed.
func (c *Channel) IsOutboundClosed() bool {
	return c.dirs.isOutboundClosed()
}

// ReadBuffers reads ciphertext from the transport and unwraps it into
// dsts[offset:offset+count]. It returns the number of plaintext bytes produced.
//
// It returns (EOF, io.EOF) when the inbound direction is closed, without touching
// the transport. A blocking channel never reads more than is currently available
// from the transport, so (0, nil) means no data was ready. Errors from the
// transport are returned unchanged.
func (c *Channel) ReadBuffers(dsts [][]byte, offset, count int) (int64, error) {
	window, err := bufferWindow(dsts, offset, count)
	if err != nil {
		return 0, err
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.dirs.isInboundClosed() {
		return EOF, io.EOF
	}

	return c.readLocked(window)
}

// Read implements io.Reader on top of ReadBuffers.
//
// A (0, nil) result means no data is currently available.
func (c *Channel) Read(p []byte) (int, error) {
	n, err := c.ReadBuffers([][]byte{p}, 0, 1)
	if n < 0 {
		return 0, io.EOF
	}

	return int(n), err
}

// WriteBuffers wraps srcs[offset:offset+count] and sends the ciphertext to the
// transport, flushing after every record. It returns the number of application
// bytes consumed.
//
// It returns (EOF, ErrOutboundClosed) when the outbound direction is closed.
// On a non-blocking channel fewer bytes than requested may be consumed; the
// caller should retry once the transport is writable.
func (c *Channel) WriteBuffers(srcs [][]byte, offset, count int) (int64, error) {
	window, err := bufferWindow(srcs, offset, count)
	if err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.dirs.isOutboundClosed() {
		return EOF, ErrOutboundClosed
	}

	if util.TotalLen(window) > 0 && !c.engine.HandshakeStatus().IsDone() {
		return 0, ErrHandshakeIncomplete
	}

	return c.writeLocked(window)
}

// Write implements io.Writer on top of WriteBuffers.
//
// A blocking channel returns io.ErrShortWrite if the engine closed before all of
// p was consumed. A non-blocking channel may return n < len(p) with a nil error.
func (c *Channel) Write(p []byte) (int, error) {
	n, err := c.WriteBuffers([][]byte{p}, 0, 1)
	if n < 0 {
		return 0, err
	}
	if err == nil && int(n) < len(p) && c.IsBlocking() {
		err = io.ErrShortWrite
	}

	return int(n), err
}

// Flush sends ciphertext that a non-blocking transport didn't accept during an
// earlier write. It returns true once nothing is pending.
func (c *Channel) Flush() (bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.flushPending()
}

// ShutdownInput marks the inbound direction closed. The transport is kept open
// until Close so close-notify messages can still be exchanged.
func (c *Channel) ShutdownInput() error {
	c.dirs.closeInbound()
	return nil
}

// ShutdownOutput closes the engine's outbound side, flushes the resulting
// close-notify to the peer and marks the outbound direction closed.
//
// If a non-blocking transport still holds back earlier ciphertext, the
// close-notify is queued behind it and Flush delivers both.
func (c *Channel) ShutdownOutput() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.engine.CloseOutbound()

	if c.dirs.isOutboundClosed() {
		return nil
	}
	defer c.dirs.closeOutbound()

	flushed, err := c.flushPending()
	if err != nil {
		return err
	}
	if !flushed {
		return c.queueCloseNotify()
	}

	_, err = c.writeLocked(nil)

	return err
}

// bufferWindow validates offset and count against bufs and returns a private
// copy of the selected slice headers.
func bufferWindow(bufs [][]byte, offset, count int) ([][]byte, error) {
	if offset < 0 || count < 0 || offset > len(bufs) || count > len(bufs)-offset {
		return nil, &BoundsError{Offset: offset, Count: count, Buffers: len(bufs)}
	}

	return util.CloneSlices(bufs[offset : offset+count]), nil
}
