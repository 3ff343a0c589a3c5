package z85

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeReferenceVector(t *testing.T) {
	x, err := hex.DecodeString("864FD26FB559F75B")
	require.NoError(t, err)

	out, err := Encode(x)
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", out)
}

func TestDecodeReferenceVector(t *testing.T) {
	out, err := Decode("HelloWorld")
	require.NoError(t, err)
	assert.Equal(t, "864fd26fb559f75b", hex.EncodeToString(out))
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0, 0, 0, 0},
		{1, 2, 3, 4, 5, 6, 7, 8},
		make([]byte, 32),
	}
	for _, c := range cases {
		enc, err := Encode(c)
		require.NoError(t, err)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, c, dec)
	}
}

func TestEncodeInvalidLength(t *testing.T) {
	_, err := Encode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeInvalidLength(t *testing.T) {
	_, err := Decode("abcd")
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeInvalidChar(t *testing.T) {
	_, err := Decode("abc\x00d")
	assert.ErrorIs(t, err, ErrInvalidChar)
}
