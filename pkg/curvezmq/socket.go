package curvezmq

import (
	"fmt"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/wire"
)

// Socket is an established, authenticated CurveZMQ connection
// exchanging application MESSAGE frames (spec.md §4.5).
type Socket struct {
	session *Session
}

// RemoteMetadata returns the full metadata map the peer presented in
// its INITIATE or READY command.
func (s *Socket) RemoteMetadata() *wire.Metadata {
	return s.session.remoteMeta
}

// RemoteIdentity returns the peer's long-term Curve25519 public key,
// decoded from the Z85-encoded Identity metadata field, or nil if the
// peer did not present one.
func (s *Socket) RemoteIdentity() []byte {
	return s.session.remoteIdent
}

// RemoteSocketType returns the peer's advertised Socket-Type metadata
// value ("DEALER" or "ROUTER"). The reference implementation this is
// grounded on has a bug where the equivalent getter returns nothing
// (spec.md §9); this implementation returns the value.
func (s *Socket) RemoteSocketType() []byte {
	v, _ := s.session.remoteMeta.Get("Socket-Type")
	return v
}

// Send encrypts and transmits one application message. Concurrent
// calls to Send on the same Socket are not permitted (spec.md §5).
func (s *Socket) Send(message []byte) error {
	sess := s.session
	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()

	if sess.nonceSpent {
		return ErrNonceExhausted
	}
	nonceVal := sess.sendNonce
	sess.sendNonce++
	if sess.sendNonce == 0 {
		// wrapped past 2^64-1: this was the last usable value.
		sess.nonceSpent = true
	}

	var nonceSuffix [8]byte
	putUint64(nonceSuffix[:], nonceVal)

	outPrefix, _ := sess.directionPrefixes()
	nonce, err := curve.Nonce(outPrefix, nonceSuffix[:])
	if err != nil {
		return fmt.Errorf("curvezmq: building message nonce: %w", err)
	}

	plaintext := make([]byte, len(message)+1)
	// flags byte low bit ("more") stays 0: this implementation never
	// fragments outbound payloads (spec.md §4.5).
	copy(plaintext[1:], message)

	boxed := curve.SealAfterPrecomputation(plaintext, nonce, sess.sessionKey)

	body := make([]byte, 0, 16+len(boxed))
	body = append(body, "\x07MESSAGE"...)
	body = append(body, nonceSuffix[:]...)
	body = append(body, boxed...)

	if err := wire.WriteFrame(sess.conn, body, false); err != nil {
		return fmt.Errorf("curvezmq: writing message frame: %w", err)
	}
	return nil
}

// Receive reads and decrypts the next application message,
// reassembling multi-part MESSAGE sequences in arrival order. It
// returns (nil, nil) on an orderly close with no buffered parts.
func (s *Socket) Receive() (msg []byte, err error) {
	defer func() {
		if err != nil {
			err = &ProtocolError{Kind: "message", Err: err}
		}
	}()

	sess := s.session
	_, inPrefix := sess.directionPrefixes()

	var parts [][]byte
	for {
		body, err := wire.ReadFrame(sess.reader, false, sess.maxFrameLen)
		if err != nil {
			return nil, fmt.Errorf("curvezmq: reading message frame: %w", err)
		}
		if body == nil {
			if len(parts) == 0 {
				return nil, nil
			}
			return nil, fmt.Errorf("curvezmq: connection closed mid-message: %w", ErrTruncatedMessage)
		}
		if len(body) < 33 || string(body[:8]) != "\x07MESSAGE" {
			return nil, fmt.Errorf("curvezmq: malformed message frame: %w", ErrInvalidFlag)
		}
		nonceSuffix := body[8:16]
		nonce, err := curve.Nonce(inPrefix, nonceSuffix)
		if err != nil {
			return nil, fmt.Errorf("curvezmq: building message nonce: %w", err)
		}
		plaintext, err := curve.OpenAfterPrecomputation(body[16:], nonce, sess.sessionKey)
		if err != nil {
			return nil, fmt.Errorf("curvezmq: opening message box: %w", ErrDecryptionError)
		}

		more := plaintext[0]&1 != 0
		payload := plaintext[1:]
		if more {
			parts = append(parts, payload)
			continue
		}
		if parts == nil {
			return payload, nil
		}
		parts = append(parts, payload)
		total := 0
		for _, p := range parts {
			total += len(p)
		}
		out := make([]byte, 0, total)
		for _, p := range parts {
			out = append(out, p...)
		}
		return out, nil
	}
}

// Close tears down the underlying connection. Idempotent.
func (s *Socket) Close() error {
	return s.session.conn.Close()
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
