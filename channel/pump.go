package channel

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/go-sslchannel/internal/util"
)

// readLocked reads one bounded chunk of ciphertext and unwraps it into dsts.
// The caller must hold readMu.
func (c *Channel) readLocked(dsts [][]byte) (int64, error) {
	var src []byte
	var readErr error

	if !c.hasBufferedPlaintext(dsts) {
		buf := c.readBuf[:cap(c.readBuf)]

		size, err := c.boundRead(len(buf))
		if err != nil {
			return 0, err
		}
		if size == 0 {
			return 0, nil
		}

		var n int
		n, readErr = c.readRaw(buf[:size])
		c.metrics.addRawBytesRead(n)
		if errors.Is(readErr, io.EOF) {
			// the peer went away without a close-notify
			c.logger.Debug("transport reached end of stream", "method", "readLocked", "read", n)
			c.dirs.closeInbound()
			if n == 0 {
				return EOF, io.EOF
			}
		}
		if n == 0 {
			return 0, readErr
		}
		src = buf[:n]
	}

	produced, closed, err := c.unwrapLoop(src, dsts)
	if err != nil {
		return produced, err
	}

	if closed {
		c.logger.Debug("inbound close-notify received", "method", "readLocked", "produced", produced)
		c.dirs.closeInbound()
	}
	if produced == 0 && c.dirs.isInboundClosed() {
		return EOF, io.EOF
	}

	return produced, readErr
}

// hasBufferedPlaintext reports whether the engine still holds plaintext that
// fits into dsts, in which case it is drained without touching the transport.
func (c *Channel) hasBufferedPlaintext(dsts [][]byte) bool {
	pb, ok := c.engine.(PlaintextBuffer)
	if !ok {
		return false
	}

	return pb.BufferedPlaintext() > 0 && util.TotalLen(dsts) > 0
}

// boundRead bounds the size of the next raw read.
//
// Consumed data is drained first. A non-blocking transport reads whatever is
// ready, so suggested is returned as is. A blocking transport is bounded by the
// bytes currently available so the read never waits for data that isn't there.
func (c *Channel) boundRead(suggested int) (int, error) {
	if avail := c.consumed.available(); avail > 0 {
		return min(avail, suggested), nil
	}

	if !c.IsBlocking() {
		return suggested, nil
	}

	avail, err := c.transport.Available()
	if err != nil {
		return 0, err
	}

	return min(avail, suggested), nil
}

// readRaw reads ciphertext from the consumed data bridge if it still holds
// bytes, from the live transport otherwise.
func (c *Channel) readRaw(p []byte) (int, error) {
	if c.consumed.active() {
		return c.consumed.read(p)
	}

	return c.transport.Read(p)
}

// unwrapLoop feeds src to the engine until it is fully consumed, writing
// plaintext into dsts. It returns the plaintext produced and whether the engine
// reported a closed inbound direction.
func (c *Channel) unwrapLoop(src []byte, dsts [][]byte) (int64, bool, error) {
	total := int64(len(src))
	room := util.TotalLen(dsts)

	var unwrapped, decrypted int64
	closed := false

	for {
		res, err := c.engine.Unwrap(src, dsts)
		if err != nil {
			return decrypted, closed, fmt.Errorf("unable to unwrap data using engine: %w", err)
		}

		if res.Status != StatusOK && res.Status != StatusClosed {
			c.logger.Error("unexpected unwrap status", "method", "unwrapLoop", "result", res)
			return decrypted, closed, &ProtocolStatusError{Op: "unwrap", Result: res}
		}

		if res.Consumed < 0 || res.Consumed > len(src) || res.Produced < 0 || res.Produced > room {
			return decrypted, closed, fmt.Errorf("engine unwrap result out of range: %s, input %d bytes, room %d bytes",
				res, len(src), room)
		}

		c.metrics.addUnwrap(res)
		unwrapped += int64(res.Consumed)
		decrypted += int64(res.Produced)
		closed = closed || res.Status == StatusClosed

		src = src[res.Consumed:]
		dsts = util.Consume(dsts, res.Produced)
		room -= res.Produced

		if unwrapped >= total {
			return decrypted, closed, nil
		}

		if res.Consumed == 0 && res.Produced == 0 {
			c.metrics.incStallCount()
			err := &StallError{Op: "unwrap", Done: unwrapped, Total: total}
			c.logger.Error("unwrap stalled", "method", "unwrapLoop", "unwrapped", unwrapped, "total", total)

			return decrypted, closed, err
		}
	}
}

// writeLocked flushes pending ciphertext, then wraps srcs record by record,
// sending every record before the next one is produced. It returns the number
// of application bytes consumed. The caller must hold writeMu.
func (c *Channel) writeLocked(srcs [][]byte) (int64, error) {
	flushed, err := c.flushPending()
	if err != nil || !flushed {
		return 0, err
	}

	total := int64(util.TotalLen(srcs))
	scratch := c.writeBuf[:cap(c.writeBuf)]

	var wrapped, encrypted, sent int64

	for {
		res, err := c.engine.Wrap(srcs, scratch)
		if err != nil {
			return wrapped, fmt.Errorf("unable to wrap data with engine: %w", err)
		}

		if res.Status != StatusOK && res.Status != StatusClosed {
			c.logger.Error("unexpected wrap status", "method", "writeLocked", "result", res)
			return wrapped, &ProtocolStatusError{Op: "wrap", Result: res}
		}

		if res.Consumed < 0 || int64(res.Consumed) > total-wrapped || res.Produced < 0 || res.Produced > len(scratch) {
			return wrapped, fmt.Errorf("engine wrap result out of range: %s, input %d bytes, room %d bytes",
				res, total-wrapped, len(scratch))
		}

		c.metrics.addWrap(res)
		wrapped += int64(res.Consumed)
		encrypted += int64(res.Produced)
		srcs = util.Consume(srcs, res.Consumed)

		n, err := c.flush(scratch[:res.Produced])
		sent += int64(n)
		if err != nil {
			return wrapped, err
		}

		if n < res.Produced {
			// the transport is full; keep the rest for the next call
			c.pending = append(c.pending[:0], scratch[n:res.Produced]...)
			c.logger.Debug("partial send, ciphertext kept pending", "method", "writeLocked",
				"sent", sent, "encrypted", encrypted, "pending", len(c.pending))

			return wrapped, nil
		}

		if res.Status == StatusClosed || wrapped >= total {
			return wrapped, nil
		}

		if res.Consumed == 0 && res.Produced == 0 && n == 0 {
			c.metrics.incStallCount()
			err := &StallError{Op: "wrap", Done: wrapped, Total: total, Sent: sent}
			c.logger.Error("wrap stalled", "method", "writeLocked", "wrapped", wrapped, "total", total, "sent", sent)

			return wrapped, err
		}
	}
}

// queueCloseNotify wraps the engine's close-notify while older ciphertext is
// still pending and appends it to the pending bytes, so the next Flush sends
// both in order. The caller must hold writeMu.
func (c *Channel) queueCloseNotify() error {
	scratch := c.writeBuf[:cap(c.writeBuf)]

	res, err := c.engine.Wrap(nil, scratch)
	if err != nil {
		return fmt.Errorf("unable to wrap close-notify with engine: %w", err)
	}
	if res.Status != StatusOK && res.Status != StatusClosed {
		c.logger.Error("unexpected wrap status", "method", "queueCloseNotify", "result", res)
		return &ProtocolStatusError{Op: "wrap", Result: res}
	}
	if res.Consumed != 0 || res.Produced < 0 || res.Produced > len(scratch) {
		return fmt.Errorf("engine wrap result out of range: %s, input 0 bytes, room %d bytes", res, len(scratch))
	}

	c.metrics.addWrap(res)
	c.pending = append(c.pending, scratch[:res.Produced]...)
	c.logger.Debug("close-notify queued behind pending ciphertext", "method", "queueCloseNotify",
		"pending", len(c.pending))

	return nil
}

// flushPending tries to send ciphertext left over by a previous partial send.
// It returns true when nothing is pending anymore.
func (c *Channel) flushPending() (bool, error) {
	if len(c.pending) == 0 {
		return true, nil
	}

	n, err := c.flush(c.pending)
	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		c.pending = nil
	}
	if err != nil {
		return false, err
	}

	return len(c.pending) == 0, nil
}

// flush writes p to the transport until it is fully written, the transport
// fails, or a non-blocking transport stops accepting bytes.
func (c *Channel) flush(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	written := 0
	for written < len(p) {
		n, err := c.transport.Write(p[written:])
		written += n
		if err != nil {
			c.metrics.addFlush(written)
			return written, err
		}
		if n == 0 {
			break
		}
	}
	c.metrics.addFlush(written)

	return written, nil
}
