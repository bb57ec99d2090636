// Package channel provides an encrypted, full-duplex byte channel that layers a
// secure-record protocol engine on top of a raw byte-stream transport.
//
// The channel doesn't implement any cryptography itself. It orchestrates an
// injected Engine: it drives the engine's handshake, wraps application data into
// records, unwraps received records into application data, and negotiates the
// close-notify exchange before releasing the transport.
//
// Components:
//   - Record pump: the wrap and unwrap loops. Every produced record is flushed to
//     the transport before the next one is produced, so ciphertext never piles up.
//     An iteration that neither consumes nor produces while input is pending fails
//     with a *StallError.
//   - Handshake driver: FinishConnect issues empty writes and reads until the
//     engine reports Finished or NotHandshaking, with a bounded number of attempts
//     and a linear backoff.
//   - Shutdown sequencer: Close reads once to observe a pending close-notify from
//     the peer, sends its own close-notify, and releases the transport.
//   - Consumed data bridge: bytes drained from the transport before the channel
//     was created are unwrapped before any live transport byte.
//
// Attachment:
//
// A channel is attached either to a raw Transport (Standalone), in which case it
// is always blocking, or to a ParentChannel (Layered), which owns the blocking
// mode and the connection setup.
//
// Blocking reads are bounded by the bytes the transport reports as available, so
// a read never waits for data that hasn't arrived yet; (0, nil) is a valid result
// in both modes.
//
// In non-blocking mode a partially sent record is kept as pending ciphertext.
// The next write sends it first; Flush sends it without writing new data.
//
// Usage Example:
//
//	cfg, _ := channel.NewConfig(channel.WithLogger(log))
//	ch, err := channel.New(channel.Layered{Parent: parent}, engine, cfg)
//	if err != nil {
//	    // ... handle error ...
//	}
//	defer ch.Close()
//
//	for {
//	    ok, err := ch.FinishConnect(ctx)
//	    if err != nil {
//	        // ... handle error ...
//	    }
//	    if ok {
//	        break
//	    }
//	    // wait for the transport to become readable
//	}
//
//	_, err = ch.Write([]byte("hello"))
package channel
