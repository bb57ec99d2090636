package netconn

import (
	"bufio"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-sslchannel/channel"
	"github.com/arloliu/go-sslchannel/logger"
)

// ErrConnNil is returned by New when the connection is nil.
var ErrConnNil = errors.New("net.Conn is nil")

// Conn adapts a connected net.Conn into a channel.ParentChannel.
//
// Non-blocking mode is emulated with short deadlines: a read or write that
// doesn't complete within the poll timeout returns what it transferred so far
// with a nil error.
//
// Reads are buffered; Available reports the buffered bytes plus whatever the
// socket has queued.
type Conn struct {
	cfg    *Config
	conn   net.Conn
	reader *bufio.Reader
	logger logger.Logger

	nonBlocking atomic.Bool
}

var _ channel.ParentChannel = (*Conn)(nil)

// New wraps conn. The Conn takes ownership of conn.
func New(conn net.Conn, cfg *Config) (*Conn, error) {
	if conn == nil {
		return nil, ErrConnNil
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}

	c := &Conn{
		cfg:    cfg,
		conn:   conn,
		reader: bufio.NewReaderSize(conn, cfg.ReadBufferSize()),
		logger: cfg.Logger().With("local", conn.LocalAddr(), "remote", conn.RemoteAddr()),
	}
	c.nonBlocking.Store(cfg.NonBlocking())

	return c, nil
}

// NetConn returns the wrapped connection.
func (c *Conn) NetConn() net.Conn {
	return c.conn
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// IsBlocking implements channel.ParentChannel.
func (c *Conn) IsBlocking() bool {
	return !c.nonBlocking.Load()
}

// SetBlocking implements channel.ParentChannel.
func (c *Conn) SetBlocking(block bool) error {
	c.nonBlocking.Store(!block)
	c.logger.Debug("blocking mode changed", "blocking", block)

	return nil
}

// FinishConnect implements channel.ParentChannel. A net.Conn is connected once
// it exists.
func (c *Conn) FinishConnect() (bool, error) {
	return true, nil
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.nonBlocking.Load() || c.reader.Buffered() > 0 {
		return c.reader.Read(p)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PollTimeout())); err != nil {
		return 0, err
	}
	n, err := c.reader.Read(p)
	if dlErr := c.conn.SetReadDeadline(time.Time{}); dlErr != nil && err == nil {
		err = dlErr
	}

	if isTimeout(err) {
		return n, nil
	}

	return n, err
}

// Write implements io.Writer. In non-blocking mode it may return a short count
// with a nil error.
func (c *Conn) Write(p []byte) (int, error) {
	if !c.nonBlocking.Load() {
		return c.conn.Write(p)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.PollTimeout())); err != nil {
		return 0, err
	}
	n, err := c.conn.Write(p)
	if dlErr := c.conn.SetWriteDeadline(time.Time{}); dlErr != nil && err == nil {
		err = dlErr
	}

	if isTimeout(err) {
		c.logger.Debug("write deadline reached", "written", n, "size", len(p))
		return n, nil
	}

	return n, err
}

// Available implements channel.Transport.
//
// It returns the bytes already buffered, otherwise the socket receive queue
// length. When the socket can't report it, or reports nothing queued, a
// one-byte peek bounded by the probe timeout decides. Returns io.EOF once the
// peer closed its side and nothing is left to read.
func (c *Conn) Available() (int, error) {
	if n := c.reader.Buffered(); n > 0 {
		return n, nil
	}

	n, ok, err := queuedBytes(c.conn)
	if err != nil {
		return 0, err
	}
	if ok && n > 0 {
		return n, nil
	}

	return c.probe()
}

func (c *Conn) probe() (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ProbeTimeout())); err != nil {
		return 0, err
	}
	_, err := c.reader.Peek(1)
	if dlErr := c.conn.SetReadDeadline(time.Time{}); dlErr != nil && err == nil {
		err = dlErr
	}

	switch {
	case err == nil:
		return c.reader.Buffered(), nil
	case isTimeout(err):
		return 0, nil
	default:
		return 0, err
	}
}

// CloseRead shuts down the reading side if the connection supports half-close.
func (c *Conn) CloseRead() error {
	if hc, ok := c.conn.(interface{ CloseRead() error }); ok {
		return hc.CloseRead()
	}

	return nil
}

// CloseWrite shuts down the writing side if the connection supports half-close.
func (c *Conn) CloseWrite() error {
	if hc, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}

	return nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
