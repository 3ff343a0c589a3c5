// Package curve wraps Curve25519 key agreement and Ed25519 signing
// key conversion for the CurveZMQ handshake.
package curve

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the width of a Curve25519 public or private key.
const KeySize = 32

// LongTermKeyPair is an Ed25519 signing keypair together with its
// deterministic Curve25519 conversion, used as a peer's stable
// identity (spec.md §3 LongTermKeyPair).
type LongTermKeyPair struct {
	Verkey  ed25519.PublicKey
	SignKey ed25519.PrivateKey
	CurvePK [KeySize]byte
	CurveSK [KeySize]byte
}

// GenerateLongTermKeyPair generates a fresh Ed25519 signing keypair
// and derives its Curve25519 counterpart.
func GenerateLongTermKeyPair() (LongTermKeyPair, error) {
	verkey, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return LongTermKeyPair{}, fmt.Errorf("curve: generating ed25519 key: %w", err)
	}
	return LongTermKeyPairFromSeed(verkey, sk)
}

// LongTermKeyPairFromSeed builds a LongTermKeyPair from an existing
// Ed25519 keypair, deriving the Curve25519 form.
func LongTermKeyPairFromSeed(verkey ed25519.PublicKey, sk ed25519.PrivateKey) (LongTermKeyPair, error) {
	curvePK, err := Ed25519PublicKeyToCurve25519(verkey)
	if err != nil {
		return LongTermKeyPair{}, err
	}
	curveSK := Ed25519PrivateKeyToCurve25519(sk)
	return LongTermKeyPair{
		Verkey:  verkey,
		SignKey: sk,
		CurvePK: curvePK,
		CurveSK: curveSK,
	}, nil
}

// curve25519P is the field prime 2^255 - 19.
var curve25519P, _ = new(big.Int).SetString(
	"57896044618658097711785492504343953926634992332820282019728792003956564819949", 10)

// Ed25519PublicKeyToCurve25519 converts an Ed25519 verification key
// (an Edwards y-coordinate) into its Curve25519 Montgomery
// u-coordinate form, via u = (1+y)/(1-y) mod p
// (https://blog.filippo.io/using-ed25519-keys-for-encryption).
func Ed25519PublicKeyToCurve25519(pk ed25519.PublicKey) ([KeySize]byte, error) {
	var out [KeySize]byte
	if len(pk) != ed25519.PublicKeySize {
		return out, fmt.Errorf("curve: invalid ed25519 public key length %d", len(pk))
	}

	// ed25519.PublicKey is little-endian; the top bit of the last byte
	// is the sign of the x-coordinate and is not part of y.
	bigEndianY := make([]byte, ed25519.PublicKeySize)
	for i, b := range pk {
		bigEndianY[ed25519.PublicKeySize-i-1] = b
	}
	bigEndianY[0] &= 0x7F

	y := new(big.Int).SetBytes(bigEndianY)
	denom := new(big.Int).Sub(big.NewInt(1), y)
	denom.ModInverse(denom, curve25519P)
	u := new(big.Int).Add(big.NewInt(1), y)
	u.Mul(u, denom)
	u.Mod(u, curve25519P)

	uBytes := u.Bytes()
	for i, b := range uBytes {
		out[len(uBytes)-i-1] = b
	}
	return out, nil
}

// Ed25519PrivateKeyToCurve25519 converts an Ed25519 private key into
// its Curve25519 scalar form: SHA-512 of the seed, clamped exactly as
// Ed25519 itself derives its signing scalar.
func Ed25519PrivateKeyToCurve25519(sk ed25519.PrivateKey) [KeySize]byte {
	h := sha512.Sum512(sk.Seed())
	var out [KeySize]byte
	copy(out[:], h[:KeySize])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}

// KeyPair is a bare Curve25519 keypair, with no Ed25519 backing. It is
// used both for per-connection ephemeral keys (spec.md §3
// EphemeralKeyPair) and for a DEALER client's own persistent identity,
// which the protocol carries directly as a Curve25519 key rather than
// as an Ed25519 verkey (see original_source's ZmqClient, which takes
// a bare nacl box keypair).
type KeyPair struct {
	PublicKey  [KeySize]byte
	PrivateKey [KeySize]byte
}

// EphemeralKeyPair is an alias for KeyPair, named for spec.md §3's
// per-connection ephemeral keys.
type EphemeralKeyPair = KeyPair

// GenerateKeyPair generates a fresh Curve25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.PrivateKey[:]); err != nil {
		return KeyPair{}, fmt.Errorf("curve: generating key pair: %w", err)
	}
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return kp, nil
}

// GenerateEphemeralKeyPair generates a fresh Curve25519 keypair for
// one connection's handshake.
func GenerateEphemeralKeyPair() (EphemeralKeyPair, error) {
	return GenerateKeyPair()
}
