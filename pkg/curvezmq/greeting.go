package curvezmq

import (
	"fmt"
	"io"
)

// greetingSize is the fixed, unframed size of a ZMTP greeting.
const greetingSize = 64

var (
	greetingSignature = [10]byte{0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0x7F}
	greetingVersion   = [2]byte{0x03, 0x00}
)

// mechanism is "CURVE" padded with NUL to 20 bytes.
func mechanismBytes() [20]byte {
	var m [20]byte
	copy(m[:], "CURVE")
	return m
}

// buildGreeting encodes the 64-byte ZMTP greeting for this peer.
func buildGreeting(asServer bool) []byte {
	buf := make([]byte, greetingSize)
	copy(buf[0:10], greetingSignature[:])
	copy(buf[10:12], greetingVersion[:])
	mech := mechanismBytes()
	copy(buf[12:32], mech[:])
	if asServer {
		buf[32] = 1
	}
	// buf[33:64] stays zero (31 bytes of padding).
	return buf
}

// readGreeting reads and validates a 64-byte ZMTP greeting in two
// chunks (10 bytes, then 54), as the signature is self-framing.
func readGreeting(r io.Reader) error {
	sig := make([]byte, 10)
	if _, err := io.ReadFull(r, sig); err != nil {
		return fmt.Errorf("curvezmq: reading greeting signature: %w", ErrDisconnected)
	}
	if sig[0] != 0xFF || sig[9] != 0x7F {
		return ErrInvalidGreeting
	}

	rest := make([]byte, 54)
	if _, err := io.ReadFull(r, rest); err != nil {
		return fmt.Errorf("curvezmq: reading greeting body: %w", ErrDisconnected)
	}
	version := rest[0:2]
	mechanism := rest[2:22]
	if version[0] != greetingVersion[0] || version[1] != greetingVersion[1] {
		return fmt.Errorf("curvezmq: version %x: %w", version, ErrUnexpectedVersion)
	}
	mech := mechanismBytes()
	for i := range mech {
		if mechanism[i] != mech[i] {
			return fmt.Errorf("curvezmq: mechanism %q: %w", mechanism, ErrUnexpectedMechanism)
		}
	}
	return nil
}
