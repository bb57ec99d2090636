package channel

import (
	"errors"
	"io"
)

// Close exchanges close-notify messages with the peer and releases the
// underlying transport.
//
// The exchange is best effort: a one byte read lets the engine see a
// close-notify the peer may have sent, then the outbound direction is shut down
// to send ours. Failures during the exchange are logged and ignored. The
// transport is released afterwards in every case, unless auto-close is
// disabled. A closable engine is always closed.
//
// Close is idempotent; only the first call does any work.
func (c *Channel) Close() (err error) {
	if !c.opState.ToClosing() {
		return nil
	}

	defer func() {
		err = c.release()
		c.opState.ToClosed()
	}()

	c.exchangeCloseNotify()

	return nil
}

// exchangeCloseNotify performs the best-effort close-notify exchange and marks
// both directions closed.
func (c *Channel) exchangeCloseNotify() {
	defer func() {
		c.dirs.closeOutbound()
		c.dirs.closeInbound()
	}()

	// A zero length read may never reach the engine's alert handling, so read a
	// single byte and discard it. This read bypasses the inbound closed check.
	c.readMu.Lock()
	one := make([]byte, 1)
	_, err := c.readLocked([][]byte{one})
	c.readMu.Unlock()

	if err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("close-notify read failed", "method", "Close", "error", err)
	}

	if !c.dirs.isOutboundClosed() {
		if err := c.ShutdownOutput(); err != nil {
			c.logger.Warn("failed to send close-notify", "method", "Close", "error", err)
		}
	}
}

// release shuts down and closes the transport when the channel owns it, and
// closes the engine if it holds resources.
func (c *Channel) release() error {
	var errs []error

	if closer, ok := c.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if !c.autoClose.Load() {
		c.logger.Debug("auto-close disabled, leave transport open", "method", "Close")
		return errors.Join(errs...)
	}

	t := c.underlying.transport()

	if err := t.CloseRead(); err != nil {
		errs = append(errs, err)
	}
	if err := t.CloseWrite(); err != nil {
		errs = append(errs, err)
	}
	if err := t.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		c.logger.Warn("failed to release transport", "method", "Close", "errors", len(errs))
	}

	return errors.Join(errs...)
}
