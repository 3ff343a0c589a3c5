package curve

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLongTermKeyPair(t *testing.T) {
	kp, err := GenerateLongTermKeyPair()
	require.NoError(t, err)
	assert.Len(t, kp.Verkey, ed25519.PublicKeySize)
	assert.Len(t, kp.SignKey, ed25519.PrivateKeySize)
	assert.NotEqual(t, [KeySize]byte{}, kp.CurvePK)
	assert.NotEqual(t, [KeySize]byte{}, kp.CurveSK)
}

func TestEd25519PublicKeyToCurve25519Deterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a, err := Ed25519PublicKeyToCurve25519(pub)
	require.NoError(t, err)
	b, err := Ed25519PublicKeyToCurve25519(pub)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEd25519PublicKeyToCurve25519InvalidLength(t *testing.T) {
	_, err := Ed25519PublicKeyToCurve25519([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestLongTermKeyPairCurveFormAgreesWithDH(t *testing.T) {
	// Two long-term keypairs must be able to perform Curve25519 key
	// agreement using their derived forms, exactly as the handshake
	// uses the long-term keys in HELLO/INITIATE.
	alice, err := GenerateLongTermKeyPair()
	require.NoError(t, err)
	bob, err := GenerateLongTermKeyPair()
	require.NoError(t, err)

	s1 := Precompute(&bob.CurvePK, &alice.CurveSK)
	s2 := Precompute(&alice.CurvePK, &bob.CurveSK)
	assert.Equal(t, s1, s2)
}

func TestGenerateEphemeralKeyPair(t *testing.T) {
	kp, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, [KeySize]byte{}, kp.PublicKey)
}
