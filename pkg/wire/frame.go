// Package wire implements the ZMTP 3.0 frame prefix and metadata map
// codec shared by the CurveZMQ handshake and session layers
// (https://rfc.zeromq.org/spec/23/).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameLength bounds the body length accepted from a
// long-form frame prefix, addressing the unbounded long-form read the
// reference implementation allows.
const DefaultMaxFrameLength = 64 << 20 // 64 MiB

const (
	flagCommand = 0x04
	flagLong    = 0x02
)

// ErrDisconnected means the peer closed the connection, or closed it
// mid-frame.
var ErrDisconnected = errors.New("wire: disconnected")

// ErrInvalidFlag means the command bit of a received frame did not
// match what the caller expected.
var ErrInvalidFlag = errors.New("wire: invalid frame flag")

// ErrFrameTooLarge means a long-form frame declared a body length
// beyond the configured ceiling.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum length")

// EncodeFrameLength returns the 2-byte or 9-byte ZMTP length prefix
// for a frame body of the given length.
func EncodeFrameLength(bodyLen int, command bool) []byte {
	flags := byte(0)
	if command {
		flags = flagCommand
	}
	if bodyLen <= 255 {
		return []byte{flags, byte(bodyLen)}
	}
	out := make([]byte, 9)
	out[0] = flags | flagLong
	binary.BigEndian.PutUint64(out[1:], uint64(bodyLen))
	return out
}

// ReadFrame reads one ZMTP frame from r. command selects whether the
// frame's command bit is required to be set. An orderly close before
// any byte of the prefix is read returns (nil, nil); any other short
// read returns ErrDisconnected. maxLen of 0 selects
// DefaultMaxFrameLength.
func ReadFrame(r io.Reader, command bool, maxLen int) ([]byte, error) {
	if maxLen == 0 {
		maxLen = DefaultMaxFrameLength
	}

	var prefix [2]byte
	n, err := io.ReadFull(r, prefix[:])
	if n == 0 && err != nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wire: reading frame prefix: %w", ErrDisconnected)
	}

	isCommand := prefix[0]&flagCommand != 0
	if isCommand != command {
		return nil, ErrInvalidFlag
	}

	var bodyLen uint64
	if prefix[0]&flagLong != 0 {
		var rest [7]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, fmt.Errorf("wire: reading long length: %w", ErrDisconnected)
		}
		var lenBuf [8]byte
		lenBuf[0] = prefix[1]
		copy(lenBuf[1:], rest[:])
		bodyLen = binary.BigEndian.Uint64(lenBuf[:])
	} else {
		bodyLen = uint64(prefix[1])
	}

	if bodyLen > uint64(maxLen) {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", ErrDisconnected)
	}
	return body, nil
}

// WriteFrame writes body to w with its ZMTP length prefix.
func WriteFrame(w io.Writer, body []byte, command bool) error {
	if _, err := w.Write(EncodeFrameLength(len(body), command)); err != nil {
		return fmt.Errorf("wire: writing frame prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}
