package channel

import (
	"bytes"
	"io"
)

// ConsumedSource is a byte source with a known number of remaining bytes, such
// as *bytes.Reader, *bytes.Buffer or *strings.Reader.
type ConsumedSource interface {
	io.Reader
	Len() int
}

// consumedBridge replays bytes that were drained from the transport before the
// channel was created. Once exhausted it is dropped and never consulted again.
type consumedBridge struct {
	src  ConsumedSource
	used bool
}

// set installs src. It returns ErrConsumedDataSet if a source was installed before.
func (b *consumedBridge) set(src ConsumedSource) error {
	if b.used {
		return ErrConsumedDataSet
	}
	if src == nil || src.Len() <= 0 {
		return nil
	}

	b.src = src
	b.used = true

	return nil
}

// available returns the number of bytes left in the bridge, dropping the source
// once it is exhausted.
func (b *consumedBridge) available() int {
	if b.src == nil {
		return 0
	}

	n := b.src.Len()
	if n <= 0 {
		b.src = nil
		return 0
	}

	return n
}

// active reports whether reads should be served from the bridge.
func (b *consumedBridge) active() bool {
	return b.available() > 0
}

// read reads from the bridge. io.EOF from an exhausted source is reported as (n, nil).
func (b *consumedBridge) read(p []byte) (int, error) {
	if b.src == nil {
		return 0, nil
	}

	n, err := b.src.Read(p)
	if err == io.EOF {
		err = nil
	}
	if b.src.Len() <= 0 {
		b.src = nil
	}

	return n, err
}

func newBytesSource(data []byte) ConsumedSource {
	return bytes.NewReader(bytes.Clone(data))
}
