package curve

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the width of a nacl box nonce.
const NonceSize = 24

// ErrDecryption means an authenticated box failed to open, i.e. the
// ciphertext or nonce was tampered with or the wrong key was used
// (spec.md §7 DecryptionError).
var ErrDecryption = errors.New("curve: box authentication failed")

// Seal encrypts plaintext for recipientPK, authenticated with
// senderSK, under nonce (crypto_box).
func Seal(plaintext []byte, nonce *[NonceSize]byte, recipientPK, senderSK *[KeySize]byte) []byte {
	return box.Seal(nil, plaintext, nonce, recipientPK, senderSK)
}

// Open decrypts a box produced by Seal (crypto_box_open).
func Open(ciphertext []byte, nonce *[NonceSize]byte, senderPK, recipientSK *[KeySize]byte) ([]byte, error) {
	out, ok := box.Open(nil, ciphertext, nonce, senderPK, recipientSK)
	if !ok {
		return nil, ErrDecryption
	}
	return out, nil
}

// Precompute derives the shared session key used for the fast path
// (crypto_box_beforenm).
func Precompute(peerPK, ourSK *[KeySize]byte) *[KeySize]byte {
	var shared [KeySize]byte
	box.Precompute(&shared, peerPK, ourSK)
	return &shared
}

// SealAfterPrecomputation encrypts plaintext with a precomputed shared
// key (crypto_box_afternm).
func SealAfterPrecomputation(plaintext []byte, nonce *[NonceSize]byte, shared *[KeySize]byte) []byte {
	return box.SealAfterPrecomputation(nil, plaintext, nonce, shared)
}

// OpenAfterPrecomputation decrypts a box with a precomputed shared key
// (crypto_box_open_afternm).
func OpenAfterPrecomputation(ciphertext []byte, nonce *[NonceSize]byte, shared *[KeySize]byte) ([]byte, error) {
	out, ok := box.OpenAfterPrecomputation(nil, ciphertext, nonce, shared)
	if !ok {
		return nil, ErrDecryption
	}
	return out, nil
}

// Nonce builds a 24-byte nacl nonce from a fixed prefix and a
// variable-length suffix, as CurveZMQ does throughout the handshake
// and session layers (e.g. "CurveZMQHELLO---" + 8-byte counter).
func Nonce(prefix string, suffix []byte) (*[NonceSize]byte, error) {
	if len(prefix)+len(suffix) != NonceSize {
		return nil, fmt.Errorf("curve: nonce prefix+suffix must total %d bytes, got %d", NonceSize, len(prefix)+len(suffix))
	}
	var n [NonceSize]byte
	copy(n[:], prefix)
	copy(n[len(prefix):], suffix)
	return &n, nil
}
