package curvezmq

import (
	"io"
	"net"
	"sync"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/wire"
)

// Role identifies which side of the handshake a Socket played.
type Role int

// Roles a Socket can play, per spec.md §3 Session.
const (
	RoleClient Role = iota
	RoleServer
)

// initiateCounter is the fixed 8-byte nonce suffix used for the
// single outbound INITIATE and READY command of a handshake, per
// spec.md §4.3: "a fixed counter-origin of 1 for these [commands]".
var initiateCounter = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

// Session is the shared state of an established CurveZMQ connection
// (spec.md §3 Session).
type Session struct {
	conn        net.Conn
	reader      io.Reader
	remoteMeta  *wire.Metadata
	sessionKey  *[curve.KeySize]byte
	role        Role
	remoteIdent []byte
	maxFrameLen int
	sendMu      sync.Mutex
	sendNonce   uint64
	nonceSpent  bool
}

func newSession(conn net.Conn, reader io.Reader, meta *wire.Metadata, sessionKey *[curve.KeySize]byte, role Role, maxFrameLen int) *Session {
	return &Session{
		conn:        conn,
		reader:      reader,
		remoteMeta:  meta,
		sessionKey:  sessionKey,
		role:        role,
		maxFrameLen: maxFrameLen,
		sendNonce:   2, // spec.md §3: send_nonce starts at 2.
	}
}

// directionPrefixes returns (outboundPrefix, inboundPrefix) for this
// session's role, per spec.md §4.5.
func (s *Session) directionPrefixes() (string, string) {
	if s.role == RoleClient {
		return "CurveZMQMESSAGEC", "CurveZMQMESSAGES"
	}
	return "CurveZMQMESSAGES", "CurveZMQMESSAGEC"
}
