package wire

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidMetadata means a metadata blob was truncated or otherwise
// malformed.
var ErrInvalidMetadata = errors.New("wire: invalid metadata")

// Metadata is an ordered mapping from short ASCII keys to byte-string
// values, as carried in INITIATE and READY.
type Metadata struct {
	keys   []string
	values map[string][]byte
}

// NewMetadata returns an empty, insertion-ordered metadata map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string][]byte)}
}

// Set inserts or overwrites key with value, preserving the original
// insertion position on overwrite.
func (m *Metadata) Set(key string, value []byte) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key, and whether it was present.
func (m *Metadata) Get(key string) ([]byte, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	return m.keys
}

// EncodeMetadata serializes m as a flat concatenation of
// <1-byte key length><key><4-byte big-endian value length><value>
// records, preserving insertion order.
func EncodeMetadata(m *Metadata) []byte {
	var out []byte
	for _, k := range m.keys {
		v := m.values[k]
		out = append(out, byte(len(k)))
		out = append(out, k...)
		var vlen [4]byte
		binary.BigEndian.PutUint32(vlen[:], uint32(len(v)))
		out = append(out, vlen[:]...)
		out = append(out, v...)
	}
	return out
}

// DecodeMetadata parses a metadata blob produced by EncodeMetadata.
func DecodeMetadata(data []byte) (*Metadata, error) {
	m := NewMetadata()
	for len(data) > 0 {
		keyLen := int(data[0])
		if len(data) < 1+keyLen+4 {
			return nil, ErrInvalidMetadata
		}
		key := string(data[1 : 1+keyLen])
		valLenOff := 1 + keyLen
		valLen := int(binary.BigEndian.Uint32(data[valLenOff : valLenOff+4]))
		valOff := valLenOff + 4
		if len(data) < valOff+valLen {
			return nil, ErrInvalidMetadata
		}
		value := data[valOff : valOff+valLen]
		m.Set(key, append([]byte{}, value...))
		data = data[valOff+valLen:]
	}
	return m, nil
}
