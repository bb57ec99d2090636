package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-sslchannel/internal/pool"
)

// FinishConnect drives the engine's handshake to completion.
//
// A layered channel first waits for its parent's connection: if the parent
// isn't connected yet, FinishConnect returns false.
//
// The handshake is driven by issuing empty writes (NeedWrap) and empty reads
// (NeedUnwrap) through the channel. Attempts that leave the handshake status
// unchanged are followed by a linear backoff sleep, attempt × backoff step, so the
// peer gets time to answer without the channel spinning or blocking in a read.
//
// FinishConnect returns true once the handshake finished or wasn't needed. When
// the attempt bound is reached, a non-blocking channel returns false and the
// caller should retry after the transport becomes readable; a blocking channel
// returns a *HandshakeTimeoutError. If ctx is done during a backoff sleep,
// ctx.Err() is returned.
//
// Handshake completed handlers are invoked once, on the first successful call.
// It returns ErrChannelClosed once Close was called.
func (c *Channel) FinishConnect(ctx context.Context) (bool, error) {
	if !c.opState.IsOpened() {
		return false, ErrChannelClosed
	}

	if l, ok := c.underlying.(Layered); ok {
		connected, err := l.Parent.FinishConnect()
		if err != nil || !connected {
			return false, err
		}
	}

	status := c.engine.HandshakeStatus()
	if status.IsDone() {
		c.notifyHandshakeCompleted()
		return true, nil
	}

	blocking := c.IsBlocking()
	maxAttempts := c.cfg.HandshakeAttempts(blocking)
	backoff := c.cfg.HandshakeBackoff()

	c.logger.Debug("start handshake", "method", "FinishConnect",
		"status", status, "blocking", blocking, "maxAttempts", maxAttempts)

	for attempts := 1; ; attempts++ {
		var err error

		switch status {
		case NeedWrap:
			// write from an empty buffer to produce handshake records
			_, err = c.WriteBuffers(nil, 0, 0)
		case NeedUnwrap:
			// our last flight may still be pending on a non-blocking transport
			if _, err = c.Flush(); err == nil {
				_, err = c.ReadBuffers(nil, 0, 0)
			}
		default:
			return false, &ProtocolStatusError{Op: "handshake", HandshakeStatus: status}
		}

		c.metrics.incHandshakeAttempts()

		if err != nil {
			c.logger.Debug("handshake attempt failed", "method", "FinishConnect",
				"attempt", attempts, "status", status, "error", err)

			return false, fmt.Errorf("error attempting to handshake with remote peer: %w", err)
		}

		prevStatus := status
		status = c.engine.HandshakeStatus()

		c.logger.Debug("handshake attempt", "method", "FinishConnect",
			"attempt", attempts, "prevStatus", prevStatus, "status", status)

		if status.IsDone() {
			break
		}

		if attempts >= maxAttempts {
			if !blocking {
				c.logger.Debug("handshake incomplete, retry later", "method", "FinishConnect", "attempts", attempts)
				return false, nil
			}

			err := &HandshakeTimeoutError{Attempts: attempts, Status: status}
			c.logger.Error("handshake stalled", "method", "FinishConnect", "error", err)

			return false, err
		}

		if status == prevStatus {
			if err := pool.Sleep(ctx, time.Duration(attempts)*backoff); err != nil {
				return false, err
			}
		}
	}

	c.notifyHandshakeCompleted()

	return true, nil
}
