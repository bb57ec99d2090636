package channel

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/arloliu/go-sslchannel/internal/util"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected error")

// fakeTransport is an in-memory Transport and ParentChannel.
type fakeTransport struct {
	mu sync.Mutex

	in  bytes.Buffer // bytes ready to be read
	out bytes.Buffer // bytes written
	eof bool         // Read returns io.EOF once in is drained

	nonBlocking bool
	connected   bool
	writeBudget int // remaining bytes Write accepts, negative means unlimited

	readErr     error
	writeErr    error
	closeErr    error
	connectErr  error
	availErr    error
	readSizes   []int
	writeCalls  int
	availCalls  int
	blockedRead int // reads that would have blocked

	closeReadCalls  int
	closeWriteCalls int
	closeCalls      int

	// when set, Write signals writeEntered and waits on writeGate first
	writeEntered chan struct{}
	writeGate    chan struct{}
}

var _ ParentChannel = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, writeBudget: -1}
}

func (t *fakeTransport) feed(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.in.Write(p)
}

func (t *fakeTransport) written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.out.Bytes())
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readSizes = append(t.readSizes, len(p))
	if t.readErr != nil {
		return 0, t.readErr
	}
	if t.in.Len() == 0 {
		if t.eof {
			return 0, io.EOF
		}
		if !t.nonBlocking {
			t.blockedRead++
		}
		return 0, nil
	}

	return t.in.Read(p)
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	if t.writeGate != nil {
		t.writeEntered <- struct{}{}
		<-t.writeGate
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeCalls++
	if t.writeErr != nil {
		return 0, t.writeErr
	}

	n := len(p)
	if t.writeBudget >= 0 {
		n = min(n, t.writeBudget)
		t.writeBudget -= n
	}
	t.out.Write(p[:n])

	return n, nil
}

func (t *fakeTransport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.availCalls++
	if t.availErr != nil {
		return 0, t.availErr
	}

	return t.in.Len(), nil
}

func (t *fakeTransport) CloseRead() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeReadCalls++
	return nil
}

func (t *fakeTransport) CloseWrite() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeWriteCalls++
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCalls++
	return t.closeErr
}

func (t *fakeTransport) IsBlocking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.nonBlocking
}

func (t *fakeTransport) SetBlocking(block bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nonBlocking = !block
	return nil
}

func (t *fakeTransport) FinishConnect() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected, t.connectErr
}

// fakeEngine is a pass-through Engine: records are the plaintext itself.
// Behaviors can be replaced per test.
type fakeEngine struct {
	mu sync.Mutex

	bufSize  int
	status   HandshakeStatus
	plain    []byte // plaintext not yet delivered
	closing  bool   // CloseOutbound was called
	peerGone bool   // report StatusClosed from Unwrap

	unwrapFn func(src []byte, dsts [][]byte) (Result, error)
	wrapFn   func(srcs [][]byte, dst []byte) (Result, error)

	// afterWrap and afterUnwrap return the handshake status following a call.
	afterWrap   func(HandshakeStatus) HandshakeStatus
	afterUnwrap func(src []byte, hs HandshakeStatus) HandshakeStatus

	unwrapCalls   int
	wrapCalls     int
	closeOutbound int
	closeCalls    int
	closeErr      error
}

var _ Engine = (*fakeEngine)(nil)

func newFakeEngine(bufSize int) *fakeEngine {
	return &fakeEngine{bufSize: bufSize, status: NotHandshaking}
}

func (e *fakeEngine) HandshakeStatus() HandshakeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *fakeEngine) setStatus(hs HandshakeStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = hs
}

func (e *fakeEngine) Unwrap(src []byte, dsts [][]byte) (Result, error) {
	e.mu.Lock()
	e.unwrapCalls++
	fn := e.unwrapFn
	e.mu.Unlock()

	if fn != nil {
		return fn(src, dsts)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.afterUnwrap != nil {
		e.status = e.afterUnwrap(src, e.status)
	}

	e.plain = append(e.plain, src...)
	produced := util.Scatter(dsts, e.plain)
	e.plain = e.plain[produced:]

	res := Result{Status: StatusOK, Consumed: len(src), Produced: produced}
	if e.peerGone && len(e.plain) == 0 {
		res.Status = StatusClosed
	}

	return res, nil
}

func (e *fakeEngine) Wrap(srcs [][]byte, dst []byte) (Result, error) {
	e.mu.Lock()
	e.wrapCalls++
	fn := e.wrapFn
	e.mu.Unlock()

	if fn != nil {
		return fn(srcs, dst)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.afterWrap != nil {
		e.status = e.afterWrap(e.status)
	}

	if e.closing {
		return Result{Status: StatusClosed}, nil
	}

	n := util.Gather(dst, srcs)

	return Result{Status: StatusOK, Consumed: n, Produced: n}, nil
}

func (e *fakeEngine) CloseOutbound() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closing = true
	e.closeOutbound++
}

func (e *fakeEngine) ApplicationBufferSize() int {
	return e.bufSize
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeCalls++
	return e.closeErr
}

func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	cfg, err := NewConfig(opts...)
	require.NoError(t, err)

	return cfg
}

func newStandalone(t *testing.T, engine Engine, opts ...Option) (*Channel, *fakeTransport) {
	t.Helper()

	tr := newFakeTransport()
	ch, err := New(Standalone{Transport: tr}, engine, newTestConfig(t, opts...))
	require.NoError(t, err)

	return ch, tr
}

func newLayered(t *testing.T, engine Engine, nonBlocking bool, opts ...Option) (*Channel, *fakeTransport) {
	t.Helper()

	tr := newFakeTransport()
	tr.nonBlocking = nonBlocking
	ch, err := New(Layered{Parent: tr}, engine, newTestConfig(t, opts...))
	require.NoError(t, err)

	return ch, tr
}
