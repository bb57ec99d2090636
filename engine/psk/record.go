package psk

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/cryptobyte"
)

// Record types.
const (
	recordAlert     uint8 = 21
	recordHandshake uint8 = 22
	recordAppData   uint8 = 23
	recordFinished  uint8 = 24
)

const (
	recordHeaderLen = 3
	// MaxPlaintext is the largest application data fragment carried by one record.
	MaxPlaintext = 16384
	aeadOverhead = 16
	// MaxRecordLen is the largest record on the wire, header included.
	MaxRecordLen = recordHeaderLen + MaxPlaintext + aeadOverhead
)

const (
	alertLevelWarning uint8 = 1
	alertCloseNotify  uint8 = 0
)

var errShortBuffer = errors.New("psk: destination too small for record")

// direction holds the protection state of one direction.
type direction struct {
	aead cipher.AEAD
	iv   []byte
	seq  uint64
}

func (d *direction) nonce() []byte {
	nonce := make([]byte, len(d.iv))
	copy(nonce, d.iv)

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], d.seq)
	for i := range seq {
		nonce[len(nonce)-8+i] ^= seq[i]
	}
	d.seq++

	return nonce
}

// putHeader writes a record header for a payload of n bytes into dst.
func putHeader(dst []byte, typ uint8, n int) error {
	b := cryptobyte.NewFixedBuilder(dst[:0])
	b.AddUint8(typ)
	b.AddUint16(uint16(n))
	_, err := b.Bytes()

	return err
}

// writePlainRecord frames payload into dst and returns the record length.
func writePlainRecord(dst []byte, typ uint8, payload []byte) (int, error) {
	n := recordHeaderLen + len(payload)
	if len(dst) < n {
		return 0, errShortBuffer
	}

	if err := putHeader(dst, typ, len(payload)); err != nil {
		return 0, err
	}
	copy(dst[recordHeaderLen:], payload)

	return n, nil
}

// sealRecord seals plaintext into a record written to dst and returns the
// record length. The header is authenticated as additional data.
func sealRecord(dst []byte, typ uint8, plaintext []byte, out *direction) (int, error) {
	ctLen := len(plaintext) + out.aead.Overhead()
	n := recordHeaderLen + ctLen
	if len(dst) < n {
		return 0, errShortBuffer
	}

	if err := putHeader(dst, typ, ctLen); err != nil {
		return 0, err
	}
	out.aead.Seal(dst[recordHeaderLen:recordHeaderLen], out.nonce(), plaintext, dst[:recordHeaderLen])

	return n, nil
}

// openRecord authenticates and decrypts a sealed record payload.
func openRecord(header, payload []byte, in *direction) ([]byte, error) {
	plaintext, err := in.aead.Open(nil, in.nonce(), payload, header)
	if err != nil {
		return nil, errBadRecordMAC
	}

	return plaintext, nil
}

// record is a parsed record; header aliases the input buffer.
type record struct {
	typ     uint8
	header  []byte
	payload []byte
}

// nextRecord parses one complete record from buf. It returns ok=false if buf
// doesn't hold a complete record yet.
func nextRecord(buf []byte) (rec record, rest []byte, ok bool, err error) {
	s := cryptobyte.String(buf)

	var typ uint8
	var length uint16
	if !s.ReadUint8(&typ) || !s.ReadUint16(&length) {
		return record{}, buf, false, nil
	}

	if int(length) > MaxPlaintext+aeadOverhead {
		return record{}, buf, false, errRecordOverflow
	}

	var payload []byte
	if !s.ReadBytes(&payload, int(length)) {
		return record{}, buf, false, nil
	}

	return record{typ: typ, header: buf[:recordHeaderLen], payload: payload}, []byte(s), true, nil
}
