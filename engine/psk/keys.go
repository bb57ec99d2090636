package psk

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	randomLen   = 32
	verifyLen   = 32
	helloMsgLen = 1 + randomLen + curve25519.PointSize
	msgHello    = uint8(1)
)

// keySchedule holds the secrets derived once both hellos have been seen.
type keySchedule struct {
	clientWrite  *direction
	serverWrite  *direction
	clientVerify []byte
	serverVerify []byte
}

func newKeyPair(rand io.Reader) (priv, pub []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return nil, nil, err
	}

	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}

	return priv, pub, nil
}

// deriveKeys mixes the ephemeral shared secret with the pre-shared key and
// binds the result to the handshake transcript.
func deriveKeys(priv, peerPub, psk, transcript []byte) (*keySchedule, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(transcript)
	ikm := make([]byte, 0, len(shared)+len(psk))
	ikm = append(ikm, shared...)
	ikm = append(ikm, psk...)
	secret := hkdf.Extract(sha256.New, ikm, sum[:])

	expand := func(label string, n int) ([]byte, error) {
		out := make([]byte, n)
		if _, err := io.ReadFull(hkdf.Expand(sha256.New, secret, []byte(label)), out); err != nil {
			return nil, err
		}

		return out, nil
	}

	newDirection := func(prefix string) (*direction, error) {
		key, err := expand(prefix+" key", chacha20poly1305.KeySize)
		if err != nil {
			return nil, err
		}
		iv, err := expand(prefix+" iv", chacha20poly1305.NonceSize)
		if err != nil {
			return nil, err
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}

		return &direction{aead: aead, iv: iv}, nil
	}

	ks := &keySchedule{}
	if ks.clientWrite, err = newDirection("c2s"); err != nil {
		return nil, err
	}
	if ks.serverWrite, err = newDirection("s2c"); err != nil {
		return nil, err
	}
	if ks.clientVerify, err = expand("client finished", verifyLen); err != nil {
		return nil, err
	}
	if ks.serverVerify, err = expand("server finished", verifyLen); err != nil {
		return nil, err
	}

	return ks, nil
}
