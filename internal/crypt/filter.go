package crypt

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/openosc/osc"
)

// scalarBaseMult computes the X25519 public key for a private scalar.
func scalarBaseMult(pub, priv *[32]byte) {
	curve25519.ScalarBaseMult(pub, priv)
}

// Filter seals and opens frames of an established, encrypted stream
// connection under one session key. The same Filter is installed on both
// the read and write side of a connection once a Handshake reaches Complete.
type Filter struct {
	aead cipherAEAD
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// newFilter derives the session key from the two X25519 public keys,
// ordered canonically (numerically lesser key first) so both peers derive
// the same key regardless of which side is the initiator.
func newFilter(priv, pub, peerPub [32]byte) (*Filter, error) {
	var shared [32]byte
	s, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return nil, fmt.Errorf("osc: deriving shared secret: %w", err)
	}
	copy(shared[:], s)

	first, second := pub, peerPub
	if bytes.Compare(peerPub[:], pub[:]) < 0 {
		first, second = peerPub, pub
	}
	info := append(append([]byte{}, first[:]...), second[:]...)

	kdf := hkdf.New(sha256.New, shared[:], nil, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("osc: deriving session key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("osc: constructing AEAD: %w", err)
	}
	return &Filter{aead: aead}, nil
}

// Seal encrypts plaintext into a self-contained frame: a random nonce
// prepended to the ciphertext. Each call picks a fresh nonce, so frames may
// be sealed out of order relative to when they are eventually sent.
func (f *Filter) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("osc: generating frame nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+f.aead.Overhead())
	out = append(out, nonce...)
	return f.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a frame produced by Seal.
func (f *Filter) Open(frame []byte) ([]byte, error) {
	n := f.aead.NonceSize()
	if len(frame) < n+f.aead.Overhead() {
		return nil, fmt.Errorf("%w: encrypted frame too short (%d bytes)", osc.ErrProtocolError, len(frame))
	}
	nonce, ciphertext := frame[:n], frame[n:]
	return f.aead.Open(nil, nonce, ciphertext, nil)
}
