package channel

// HandshakeCompletedHandler is invoked once a channel's handshake completes.
//
// Note: the handler is invoked synchronously by FinishConnect. Take care with
// long-running implementations.
type HandshakeCompletedHandler func(ch *Channel)

// AddHandshakeCompletedHandler registers a handler and returns its id for
// RemoveHandshakeCompletedHandler. Handlers are invoked in no particular order.
//
// A handler added after the handshake completed is not invoked.
func (c *Channel) AddHandshakeCompletedHandler(handler HandshakeCompletedHandler) uint64 {
	id := c.handlerSeq.Add(1)
	if handler != nil {
		c.handlers.Store(id, handler)
	}

	return id
}

// RemoveHandshakeCompletedHandler unregisters the handler with the given id.
// It returns false if no such handler exists.
func (c *Channel) RemoveHandshakeCompletedHandler(id uint64) bool {
	_, ok := c.handlers.LoadAndDelete(id)
	return ok
}

// IsHandshakeCompleted returns true once FinishConnect succeeded.
func (c *Channel) IsHandshakeCompleted() bool {
	return c.handshakeDone.Load()
}

func (c *Channel) notifyHandshakeCompleted() {
	if !c.handshakeDone.CompareAndSwap(false, true) {
		return
	}

	c.logger.Info("handshake completed", "handlers", c.handlers.Size())

	c.handlers.Range(func(_ uint64, handler HandshakeCompletedHandler) bool {
		handler(c)
		return true
	})
}
