// Package z85 implements the Z85 base-85 codec used by ZMTP to encode
// binary identities and keys in metadata (https://rfc.zeromq.org/spec/32/).
package z85

import "fmt"

// Encode alphabet, in encode order. The decode table is its inverse.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFG" +
	"HIJKLMNOPQRSTUVWXYZ.-:+=^!/*?&<>()[]{}@%$#"

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// ErrInvalidLength is returned when the input length is not aligned to
// the codec's block size (4 bytes for Encode, 5 bytes for Decode).
var ErrInvalidLength = fmt.Errorf("z85: invalid input length")

// ErrInvalidChar is returned by Decode when the input contains a byte
// outside the Z85 alphabet.
var ErrInvalidChar = fmt.Errorf("z85: invalid character")

// Encode converts x, whose length must be a multiple of 4, into its
// Z85 base-85 representation.
func Encode(x []byte) (string, error) {
	if len(x)%4 != 0 {
		return "", ErrInvalidLength
	}
	out := make([]byte, len(x)*5/4)
	pos := 0
	for i := 0; i < len(x); i += 4 {
		value := uint32(x[i])<<24 | uint32(x[i+1])<<16 | uint32(x[i+2])<<8 | uint32(x[i+3])
		var chunk [5]byte
		for j := 4; j >= 0; j-- {
			chunk[j] = alphabet[value%85]
			value /= 85
		}
		copy(out[pos:pos+5], chunk[:])
		pos += 5
	}
	return string(out), nil
}

// Decode converts a Z85 string, whose length must be a multiple of 5,
// back into its binary form.
func Decode(s string) ([]byte, error) {
	if len(s)%5 != 0 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, len(s)*4/5)
	pos := 0
	for i := 0; i < len(s); i += 5 {
		var value uint32
		for j := 0; j < 5; j++ {
			d := decodeTable[s[i+j]]
			if d < 0 {
				return nil, ErrInvalidChar
			}
			value = value*85 + uint32(d)
		}
		out[pos] = byte(value >> 24)
		out[pos+1] = byte(value >> 16)
		out[pos+2] = byte(value >> 8)
		out[pos+3] = byte(value)
		pos += 4
	}
	return out, nil
}
