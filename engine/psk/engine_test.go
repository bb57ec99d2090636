package psk

import (
	"bytes"
	"testing"

	"github.com/arloliu/go-sslchannel/channel"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newPair(t *testing.T, clientKey, serverKey []byte) (*Engine, *Engine) {
	t.Helper()

	client, err := NewClient(clientKey)
	require.NoError(t, err)
	server, err := NewServer(serverKey)
	require.NoError(t, err)

	return client, server
}

// flight wraps the pending handshake flight of from and unwraps it into to.
func flight(t *testing.T, from, to *Engine) error {
	t.Helper()

	buf := make([]byte, MaxRecordLen)
	res, err := from.Wrap(nil, buf)
	require.NoError(t, err)
	require.Equal(t, channel.StatusOK, res.Status)
	require.Positive(t, res.Produced)

	_, err = to.Unwrap(buf[:res.Produced], nil)

	return err
}

func handshake(t *testing.T, client, server *Engine) {
	t.Helper()

	require.NoError(t, flight(t, client, server))
	require.NoError(t, flight(t, server, client))
	require.NoError(t, flight(t, client, server))
}

func seal(t *testing.T, e *Engine, data ...[]byte) []byte {
	t.Helper()

	buf := make([]byte, MaxRecordLen)
	res, err := e.Wrap(data, buf)
	require.NoError(t, err)
	require.Equal(t, channel.StatusOK, res.Status)

	return buf[:res.Produced]
}

func TestNew_KeyTooShort(t *testing.T) {
	_, err := NewClient([]byte("short"))
	require.ErrorIs(t, err, ErrKeyTooShort)

	_, err = NewServer(nil)
	require.ErrorIs(t, err, ErrKeyTooShort)
}

func TestHandshake(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	require.Equal(Client, client.Role())
	require.Equal("server", server.Role().String())

	require.Equal(channel.NeedWrap, client.HandshakeStatus())
	require.Equal(channel.NeedUnwrap, server.HandshakeStatus())

	require.NoError(flight(t, client, server))
	require.Equal(channel.NeedUnwrap, client.HandshakeStatus())
	require.Equal(channel.NeedWrap, server.HandshakeStatus())

	require.NoError(flight(t, server, client))
	require.Equal(channel.NeedWrap, client.HandshakeStatus())
	require.Equal(channel.NeedUnwrap, server.HandshakeStatus())

	require.NoError(flight(t, client, server))
	require.Equal(channel.NotHandshaking, client.HandshakeStatus())
	require.Equal(channel.NotHandshaking, server.HandshakeStatus())

	// waiting for the peer produces nothing
	res, err := client.Wrap(nil, make([]byte, MaxRecordLen))
	require.NoError(err)
	require.Zero(res.Produced)
}

func TestHandshake_KeyMismatch(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, bytes.Repeat([]byte("x"), 32))

	require.NoError(flight(t, client, server))
	err := flight(t, server, client)
	require.ErrorIs(err, errBadRecordMAC)

	// the error is sticky
	_, err = client.Unwrap(nil, nil)
	require.ErrorIs(err, errBadRecordMAC)
	_, err = client.Wrap(nil, make([]byte, MaxRecordLen))
	require.ErrorIs(err, errBadRecordMAC)
}

func TestHandshake_UnexpectedRecord(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	// a second client hello after completion
	other, err := NewClient(testKey)
	require.NoError(err)
	require.ErrorIs(flight(t, other, server), errUnexpectedRecord)
}

func TestAppData(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	record := seal(t, client, []byte("hello "), nil, []byte("world"))
	require.Len(record, recordHeaderLen+11+aeadOverhead)

	buf := make([]byte, 64)
	res, err := server.Unwrap(record, [][]byte{buf})
	require.NoError(err)
	require.Equal(channel.StatusOK, res.Status)
	require.Equal(len(record), res.Consumed)
	require.Equal("hello world", string(buf[:res.Produced]))

	// and back
	record = seal(t, server, []byte("pong"))
	res, err = client.Unwrap(record, [][]byte{buf})
	require.NoError(err)
	require.Equal("pong", string(buf[:res.Produced]))
}

func TestAppData_Fragmentation(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	data := bytes.Repeat([]byte("z"), MaxPlaintext+100)
	res, err := client.Wrap([][]byte{data}, make([]byte, MaxRecordLen))
	require.NoError(err)
	require.Equal(MaxPlaintext, res.Consumed)
	require.Equal(MaxRecordLen, res.Produced)

	// a small destination limits the fragment
	res, err = client.Wrap([][]byte{data}, make([]byte, 100))
	require.NoError(err)
	require.Equal(100-recordHeaderLen-aeadOverhead, res.Consumed)
	require.Equal(100, res.Produced)

	res, err = client.Wrap([][]byte{data}, make([]byte, recordHeaderLen+aeadOverhead))
	require.NoError(err)
	require.Equal(channel.StatusBufferOverflow, res.Status)
}

func TestAppData_PartialRecords(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	record := seal(t, client, []byte("split across reads"))
	buf := make([]byte, 64)

	var got []byte
	for i := range record {
		res, err := server.Unwrap(record[i:i+1], [][]byte{buf})
		require.NoError(err)
		require.Equal(1, res.Consumed)
		got = append(got, buf[:res.Produced]...)
	}
	require.Equal("split across reads", string(got))
}

func TestAppData_BufferedPlaintext(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	record := seal(t, client, []byte("0123456789"))
	small := make([]byte, 4)

	res, err := server.Unwrap(record, [][]byte{small})
	require.NoError(err)
	require.Equal(len(record), res.Consumed)
	require.Equal(4, res.Produced)
	require.Equal(6, server.BufferedPlaintext())

	res, err = server.Unwrap(nil, [][]byte{small})
	require.NoError(err)
	require.Equal("4567", string(small[:res.Produced]))

	res, err = server.Unwrap(nil, [][]byte{small})
	require.NoError(err)
	require.Equal("89", string(small[:res.Produced]))
	require.Zero(server.BufferedPlaintext())
}

func TestAppData_Tampered(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	record := seal(t, client, []byte("integrity"))
	record[len(record)-1] ^= 0xff

	_, err := server.Unwrap(record, [][]byte{make([]byte, 64)})
	require.ErrorIs(err, errBadRecordMAC)
}

func TestAppData_BeforeHandshake(t *testing.T) {
	client, server := newPair(t, testKey, testKey)

	// a raw application data record while the server awaits the hello
	record := []byte{recordAppData, 0, 1, 'x'}
	_, err := server.Unwrap(record, nil)
	require.ErrorIs(t, err, errDataBeforeHandshake)

	res, err := client.Wrap([][]byte{[]byte("early")}, make([]byte, MaxRecordLen))
	require.NoError(t, err)
	require.Zero(t, res.Consumed)
}

func TestRecordOverflow(t *testing.T) {
	_, server := newPair(t, testKey, testKey)

	_, err := server.Unwrap([]byte{recordAppData, 0xff, 0xff}, nil)
	require.ErrorIs(t, err, errRecordOverflow)
}

func TestCloseNotify(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	data := seal(t, client, []byte("last words"))

	client.CloseOutbound()
	buf := make([]byte, MaxRecordLen)
	res, err := client.Wrap(nil, buf)
	require.NoError(err)
	require.Equal(channel.StatusClosed, res.Status)
	require.Positive(res.Produced)

	// bytes after the alert are discarded
	wire := append(append(data, buf[:res.Produced]...), []byte("garbage")...)

	out := make([]byte, 64)
	ures, err := server.Unwrap(wire, [][]byte{out})
	require.NoError(err)
	require.Equal(channel.StatusClosed, ures.Status)
	require.Equal(len(wire), ures.Consumed)
	require.Equal("last words", string(out[:ures.Produced]))

	ures, err = server.Unwrap([]byte("more"), [][]byte{out})
	require.NoError(err)
	require.Equal(channel.StatusClosed, ures.Status)
	require.Zero(ures.Produced)

	// the alert is sent once
	res, err = client.Wrap([][]byte{[]byte("ignored")}, buf)
	require.NoError(err)
	require.Equal(channel.StatusClosed, res.Status)
	require.Zero(res.Produced)
	require.Zero(res.Consumed)
}

func TestCloseNotify_DuringHandshake(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)

	client.CloseOutbound()
	buf := make([]byte, MaxRecordLen)
	res, err := client.Wrap(nil, buf)
	require.NoError(err)
	require.Equal(channel.StatusClosed, res.Status)

	ures, err := server.Unwrap(buf[:res.Produced], nil)
	require.NoError(err)
	require.Equal(channel.StatusClosed, ures.Status)
}

func TestClose(t *testing.T) {
	require := require.New(t)

	client, server := newPair(t, testKey, testKey)
	handshake(t, client, server)

	require.NoError(client.Close())

	_, err := client.Wrap(nil, make([]byte, MaxRecordLen))
	require.ErrorIs(err, ErrEngineClosed)
	_, err = client.Unwrap(nil, nil)
	require.ErrorIs(err, ErrEngineClosed)
	require.Equal(MaxRecordLen, client.ApplicationBufferSize())
}
