package psk

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"io"
	"sync"

	"github.com/arloliu/go-sslchannel/channel"
	"github.com/arloliu/go-sslchannel/internal/util"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/curve25519"
)

// MinKeyLen is the shortest accepted pre-shared key.
const MinKeyLen = 16

// Role is the side of the handshake an engine plays.
type Role uint8

const (
	// Client sends the first hello.
	Client Role = iota
	// Server waits for the client hello.
	Server
)

func (r Role) String() string {
	if r == Client {
		return "client"
	}

	return "server"
}

type state uint8

const (
	stateSendHello state = iota
	stateWaitHello
	stateSendFinished // client: own finished, server: hello and finished
	stateWaitFinished
	stateDone
)

// Engine is a pre-shared-key record engine implementing channel.Engine.
//
// Wrap and Unwrap may be called concurrently from different goroutines.
type Engine struct {
	mu   sync.Mutex
	role Role
	psk  []byte

	state state
	err   error // sticky protocol error

	priv, pub  []byte
	random     []byte
	transcript []byte

	keys *keySchedule
	in   *direction
	out  *direction

	inBuf []byte // ciphertext of incomplete records
	plain []byte // plaintext not yet delivered

	closeRequested bool
	closeSent      bool
	closeReceived  bool
	closed         bool
}

var (
	_ channel.Engine          = (*Engine)(nil)
	_ channel.PlaintextBuffer = (*Engine)(nil)
	_ io.Closer               = (*Engine)(nil)
)

// NewClient creates a client engine using the given pre-shared key.
func NewClient(key []byte) (*Engine, error) {
	return newEngine(Client, key, rand.Reader)
}

// NewServer creates a server engine using the given pre-shared key.
func NewServer(key []byte) (*Engine, error) {
	return newEngine(Server, key, rand.Reader)
}

func newEngine(role Role, key []byte, random io.Reader) (*Engine, error) {
	if len(key) < MinKeyLen {
		return nil, ErrKeyTooShort
	}

	e := &Engine{
		role: role,
		psk:  bytes.Clone(key),
	}

	var err error
	e.priv, e.pub, err = newKeyPair(random)
	if err != nil {
		return nil, err
	}

	e.random = make([]byte, randomLen)
	if _, err := io.ReadFull(random, e.random); err != nil {
		return nil, err
	}

	if role == Client {
		e.state = stateSendHello
	} else {
		e.state = stateWaitHello
	}

	return e, nil
}

// Role returns the handshake role of the engine.
func (e *Engine) Role() Role {
	return e.role
}

// HandshakeStatus implements channel.Engine.
func (e *Engine) HandshakeStatus() channel.HandshakeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateSendHello, stateSendFinished:
		return channel.NeedWrap
	case stateWaitHello, stateWaitFinished:
		return channel.NeedUnwrap
	default:
		return channel.NotHandshaking
	}
}

// ApplicationBufferSize implements channel.Engine. It is large enough to hold
// one full record.
func (e *Engine) ApplicationBufferSize() int {
	return MaxRecordLen
}

// BufferedPlaintext implements channel.PlaintextBuffer.
func (e *Engine) BufferedPlaintext() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.plain)
}

// CloseOutbound implements channel.Engine.
func (e *Engine) CloseOutbound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeRequested = true
}

// Close wipes the key material. The engine is unusable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.psk)
	clear(e.priv)
	e.keys, e.in, e.out = nil, nil, nil
	e.inBuf, e.plain = nil, nil
	e.closed = true

	return nil
}

// Unwrap implements channel.Engine.
//
// All of src is consumed: complete records are processed and a trailing partial
// record is buffered until the rest arrives. Plaintext that doesn't fit into
// dsts is kept for the next call. Bytes following a close-notify alert are
// discarded.
func (e *Engine) Unwrap(src []byte, dsts [][]byte) (channel.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return channel.Result{}, ErrEngineClosed
	}
	if e.err != nil {
		return channel.Result{}, e.err
	}

	if !e.closeReceived {
		e.inBuf = append(e.inBuf, src...)
		if err := e.processRecords(); err != nil {
			e.err = err
			return channel.Result{Consumed: len(src)}, err
		}
	}

	produced := util.Scatter(dsts, e.plain)
	e.plain = e.plain[produced:]
	if len(e.plain) == 0 {
		e.plain = nil
	}

	res := channel.Result{Status: channel.StatusOK, Consumed: len(src), Produced: produced}
	if e.closeReceived && len(e.plain) == 0 {
		res.Status = channel.StatusClosed
	}

	return res, nil
}

func (e *Engine) processRecords() error {
	for !e.closeReceived {
		rec, rest, ok, err := nextRecord(e.inBuf)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if err := e.processRecord(rec); err != nil {
			return err
		}
		e.inBuf = rest
	}

	if e.closeReceived {
		e.inBuf = nil
	} else {
		e.inBuf = bytes.Clone(e.inBuf)
	}

	return nil
}

func (e *Engine) processRecord(rec record) error {
	switch rec.typ {
	case recordHandshake:
		if e.state != stateWaitHello {
			return errUnexpectedRecord
		}

		return e.processHello(rec.payload)

	case recordFinished:
		if e.state != stateWaitFinished {
			return errUnexpectedRecord
		}

		return e.processFinished(rec)

	case recordAppData:
		if e.state != stateDone {
			return errDataBeforeHandshake
		}

		plaintext, err := openRecord(rec.header, rec.payload, e.in)
		if err != nil {
			return err
		}
		e.plain = append(e.plain, plaintext...)

		return nil

	case recordAlert:
		return e.processAlert(rec)

	default:
		return errUnexpectedRecord
	}
}

func (e *Engine) processHello(payload []byte) error {
	s := cryptobyte.String(payload)

	var typ uint8
	var random, peerPub []byte
	if !s.ReadUint8(&typ) || typ != msgHello ||
		!s.ReadBytes(&random, randomLen) ||
		!s.ReadBytes(&peerPub, curve25519.PointSize) ||
		!s.Empty() {
		return errMalformedHello
	}

	own, err := e.helloMessage()
	if err != nil {
		return err
	}

	// transcript is always client hello followed by server hello
	if e.role == Client {
		e.transcript = append(append(e.transcript, own...), payload...)
	} else {
		e.transcript = append(append(e.transcript, payload...), own...)
	}

	keys, err := deriveKeys(e.priv, peerPub, e.psk, e.transcript)
	if err != nil {
		return err
	}
	clear(e.priv)

	e.keys = keys
	if e.role == Client {
		e.in, e.out = keys.serverWrite, keys.clientWrite
		e.state = stateWaitFinished
	} else {
		e.in, e.out = keys.clientWrite, keys.serverWrite
		e.state = stateSendFinished
	}

	return nil
}

func (e *Engine) processFinished(rec record) error {
	verify, err := openRecord(rec.header, rec.payload, e.in)
	if err != nil {
		return err
	}

	want := e.keys.clientVerify
	if e.role == Client {
		want = e.keys.serverVerify
	}
	if subtle.ConstantTimeCompare(verify, want) != 1 {
		return errFinishedMismatch
	}

	if e.role == Client {
		e.state = stateSendFinished
	} else {
		e.state = stateDone
	}

	return nil
}

func (e *Engine) processAlert(rec record) error {
	// an alert sent before the peer derived its keys travels in the clear
	payload := rec.payload
	if e.in != nil && (e.state == stateDone || len(payload) > 2) {
		plaintext, err := openRecord(rec.header, rec.payload, e.in)
		if err != nil {
			return err
		}
		payload = plaintext
	}

	s := cryptobyte.String(payload)
	var level, desc uint8
	if !s.ReadUint8(&level) || !s.ReadUint8(&desc) || !s.Empty() || desc != alertCloseNotify {
		return errUnknownAlert
	}
	e.closeReceived = true

	return nil
}

func (e *Engine) helloMessage() ([]byte, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, helloMsgLen))
	b.AddUint8(msgHello)
	b.AddBytes(e.random)
	b.AddBytes(e.pub)

	return b.Bytes()
}

// Wrap implements channel.Engine.
//
// While handshaking it emits the next handshake flight and ignores srcs. Once
// CloseOutbound was called it emits the close-notify alert and reports
// StatusClosed from then on. Otherwise it seals as much of srcs as fits into
// one record in dst.
func (e *Engine) Wrap(srcs [][]byte, dst []byte) (channel.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return channel.Result{}, ErrEngineClosed
	}
	if e.err != nil {
		return channel.Result{}, e.err
	}

	if e.closeSent {
		return channel.Result{Status: channel.StatusClosed}, nil
	}

	if e.closeRequested {
		return e.wrapCloseNotify(dst)
	}

	switch e.state {
	case stateSendHello:
		return e.wrapHello(dst)
	case stateSendFinished:
		return e.wrapFinished(dst)
	case stateDone:
		return e.wrapAppData(srcs, dst)
	default:
		// waiting for the peer, nothing to send
		return channel.Result{Status: channel.StatusOK}, nil
	}
}

func (e *Engine) wrapHello(dst []byte) (channel.Result, error) {
	hello, err := e.helloMessage()
	if err != nil {
		return channel.Result{}, err
	}

	n, err := writePlainRecord(dst, recordHandshake, hello)
	if err != nil {
		return channel.Result{Status: channel.StatusBufferOverflow}, nil
	}
	e.state = stateWaitHello

	return channel.Result{Status: channel.StatusOK, Produced: n}, nil
}

func (e *Engine) wrapFinished(dst []byte) (channel.Result, error) {
	verify := e.keys.clientVerify
	offset := 0

	if e.role == Server {
		verify = e.keys.serverVerify

		hello, err := e.helloMessage()
		if err != nil {
			return channel.Result{}, err
		}
		if len(dst) < recordHeaderLen+len(hello)+recordHeaderLen+verifyLen+aeadOverhead {
			return channel.Result{Status: channel.StatusBufferOverflow}, nil
		}

		offset, err = writePlainRecord(dst, recordHandshake, hello)
		if err != nil {
			return channel.Result{}, err
		}
	}

	n, err := sealRecord(dst[offset:], recordFinished, verify, e.out)
	if err != nil {
		return channel.Result{Status: channel.StatusBufferOverflow}, nil
	}

	if e.role == Server {
		e.state = stateWaitFinished
	} else {
		e.state = stateDone
	}

	return channel.Result{Status: channel.StatusOK, Produced: offset + n}, nil
}

func (e *Engine) wrapAppData(srcs [][]byte, dst []byte) (channel.Result, error) {
	total := util.TotalLen(srcs)
	if total == 0 {
		return channel.Result{Status: channel.StatusOK}, nil
	}

	room := min(len(dst)-recordHeaderLen-aeadOverhead, MaxPlaintext)
	if room <= 0 {
		return channel.Result{Status: channel.StatusBufferOverflow}, nil
	}

	fragment := make([]byte, min(total, room))
	util.Gather(fragment, srcs)

	n, err := sealRecord(dst, recordAppData, fragment, e.out)
	if err != nil {
		return channel.Result{}, err
	}

	return channel.Result{Status: channel.StatusOK, Consumed: len(fragment), Produced: n}, nil
}

func (e *Engine) wrapCloseNotify(dst []byte) (channel.Result, error) {
	alert := []byte{alertLevelWarning, alertCloseNotify}

	var n int
	var err error
	if e.out != nil {
		n, err = sealRecord(dst, recordAlert, alert, e.out)
	} else {
		n, err = writePlainRecord(dst, recordAlert, alert)
	}
	if err != nil {
		return channel.Result{Status: channel.StatusBufferOverflow}, nil
	}
	e.closeSent = true

	return channel.Result{Status: channel.StatusClosed, Produced: n}, nil
}
