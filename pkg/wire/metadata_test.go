package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMetadataWorkedExample(t *testing.T) {
	m := NewMetadata()
	m.Set("Socket-Type", []byte("DEALER"))
	m.Set("Identity", []byte("rq:rM"))

	want := []byte{0x0B}
	want = append(want, "Socket-Type"...)
	want = append(want, 0, 0, 0, 6)
	want = append(want, "DEALER"...)
	want = append(want, 0x08)
	want = append(want, "Identity"...)
	want = append(want, 0, 0, 0, 5)
	want = append(want, "rq:rM"...)

	assert.Equal(t, want, EncodeMetadata(m))
}

func TestMetadataRoundTripPreservesOrder(t *testing.T) {
	m := NewMetadata()
	m.Set("Socket-Type", []byte("ROUTER"))
	m.Set("Identity", []byte("abcde"))
	m.Set("Resource", []byte(""))

	decoded, err := DecodeMetadata(EncodeMetadata(m))
	require.NoError(t, err)

	assert.Equal(t, m.Keys(), decoded.Keys())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		dv, ok := decoded.Get(k)
		assert.True(t, ok)
		assert.Equal(t, v, dv)
	}
}

func TestDecodeMetadataTruncated(t *testing.T) {
	_, err := DecodeMetadata([]byte{0x05, 'a', 'b'})
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestDecodeMetadataTruncatedValue(t *testing.T) {
	buf := []byte{0x01, 'k', 0, 0, 0, 10, 'v'}
	_, err := DecodeMetadata(buf)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}
