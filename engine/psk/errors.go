package psk

import "errors"

var (
	// ErrKeyTooShort is returned when the pre-shared key is shorter than MinKeyLen.
	ErrKeyTooShort = errors.New("psk: pre-shared key too short")
	// ErrEngineClosed is returned by Wrap and Unwrap after Close.
	ErrEngineClosed = errors.New("psk: engine closed")

	errBadRecordMAC        = errors.New("psk: bad record mac")
	errRecordOverflow      = errors.New("psk: record overflow")
	errUnexpectedRecord    = errors.New("psk: unexpected record")
	errMalformedHello      = errors.New("psk: malformed hello")
	errFinishedMismatch    = errors.New("psk: finished verify data mismatch")
	errUnknownAlert        = errors.New("psk: unknown alert")
	errDataBeforeHandshake = errors.New("psk: application data before handshake completion")
)
