package curvezmq

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/wire"
	"github.com/andrewwhitehead/indy-zmq/pkg/z85"
)

// Handler is invoked once per completed handshake, given the
// established Socket (spec.md §6 Server(handler, keypair).run).
type Handler func(*Socket)

// Server drives the responder side of the CurveZMQ handshake
// (spec.md §4.3), playing the ROUTER role.
type Server struct {
	handler     Handler
	keys        curve.LongTermKeyPair
	maxFrameLen int

	mu     sync.Mutex
	active map[*Socket]struct{}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerMaxFrameLength overrides the maximum accepted MESSAGE
// frame body length (spec.md §4.5) in place of
// wire.DefaultMaxFrameLength, for every session this Server
// establishes.
func WithServerMaxFrameLength(n int) ServerOption {
	return func(s *Server) { s.maxFrameLen = n }
}

// NewServer returns a Server that invokes handler once per accepted,
// handshaken connection, identified by keys.
func NewServer(handler Handler, keys curve.LongTermKeyPair, opts ...ServerOption) *Server {
	s := &Server{handler: handler, keys: keys, active: make(map[*Socket]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CloseActiveSessions closes every currently established Socket,
// unblocking any goroutine parked in Socket.Receive with an orderly
// close. Used by node.py-style graceful shutdown (spec.md §7
// supplemented feature).
func (s *Server) CloseActiveSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sock := range s.active {
		sock.Close()
	}
}

func (s *Server) registerSocket(sock *Socket) {
	s.mu.Lock()
	s.active[sock] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregisterSocket(sock *Socket) {
	s.mu.Lock()
	delete(s.active, sock)
	s.mu.Unlock()
}

// Run accepts connections on host:port until the listener is closed
// or ctx-style cancellation is applied by the caller closing the
// returned net.Listener, spawning one goroutine per accepted
// connection (spec.md §5).
func (s *Server) Run(host string, port int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	go s.acceptLoop(ln)
	return ln, nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	socket, err := s.handshake(conn)
	if err != nil {
		return
	}
	s.registerSocket(socket)
	defer s.unregisterSocket(socket)
	s.handler(socket)
}

func (s *Server) handshake(conn net.Conn) (sock *Socket, err error) {
	stage := "greeting"
	defer func() {
		if err != nil {
			err = &HandshakeError{Stage: stage, Err: err}
		}
	}()

	reader := bufio.NewReader(conn)

	if _, err := conn.Write(buildGreeting(true)); err != nil {
		return nil, fmt.Errorf("curvezmq: sending greeting: %w", err)
	}
	if err := readGreeting(reader); err != nil {
		return nil, err
	}

	stage = "hello"
	helloBody, err := wire.ReadFrame(reader, true, 0)
	if err != nil {
		return nil, err
	}
	if helloBody == nil {
		return nil, ErrDisconnected
	}
	if len(helloBody) != 200 || string(helloBody[:8]) != "\x05HELLO\x01\x00" {
		return nil, fmt.Errorf("curvezmq: invalid hello packet")
	}
	var clientEphPK [curve.KeySize]byte
	copy(clientEphPK[:], helloBody[80:112])
	helloNonce, err := curve.Nonce("CurveZMQHELLO---", helloBody[112:120])
	if err != nil {
		return nil, err
	}
	signed, err := curve.Open(helloBody[120:200], helloNonce, &clientEphPK, &s.keys.CurveSK)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: opening hello box: %w", ErrDecryptionError)
	}
	if !isZero(signed) {
		return nil, fmt.Errorf("curvezmq: hello plaintext not all zero")
	}

	ephemeral, err := curve.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	var welcomeNonceSuffix [16]byte
	if err := randBytes(welcomeNonceSuffix[:]); err != nil {
		return nil, err
	}
	welcomeNonce, err := curve.Nonce("WELCOME-", welcomeNonceSuffix[:])
	if err != nil {
		return nil, err
	}
	cookie := make([]byte, 96)
	if err := randBytes(cookie); err != nil {
		return nil, err
	}
	welcomePlain := append(append([]byte{}, ephemeral.PublicKey[:]...), cookie...)
	welcomeBox := curve.Seal(welcomePlain, welcomeNonce, &clientEphPK, &s.keys.CurveSK)

	stage = "welcome"
	welcome := make([]byte, 0, 168)
	welcome = append(welcome, "\x07WELCOME"...)
	welcome = append(welcome, welcomeNonceSuffix[:]...)
	welcome = append(welcome, welcomeBox...)
	if err := wire.WriteFrame(conn, welcome, true); err != nil {
		return nil, fmt.Errorf("curvezmq: sending welcome: %w", err)
	}

	stage = "initiate"
	initiate, err := wire.ReadFrame(reader, true, 0)
	if err != nil {
		return nil, err
	}
	if initiate == nil {
		return nil, ErrDisconnected
	}
	if len(initiate) < 257 || string(initiate[:9]) != "\x08INITIATE" {
		return nil, fmt.Errorf("curvezmq: invalid initiate packet")
	}
	gotCookie := initiate[9:105]
	if string(gotCookie) != string(cookie) {
		return nil, fmt.Errorf("curvezmq: cookie mismatch")
	}

	xkey := curve.Precompute(&clientEphPK, &ephemeral.PrivateKey)
	initNonce, err := curve.Nonce("CurveZMQINITIATE", initiate[105:113])
	if err != nil {
		return nil, err
	}
	initPlain, err := curve.OpenAfterPrecomputation(initiate[113:], initNonce, xkey)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: opening initiate box: %w", ErrDecryptionError)
	}
	if len(initPlain) < 128 {
		return nil, fmt.Errorf("curvezmq: initiate plaintext too short")
	}
	var clientPK [curve.KeySize]byte
	copy(clientPK[:], initPlain[:32])

	vouchNonce, err := curve.Nonce("VOUCH---", initPlain[32:48])
	if err != nil {
		return nil, err
	}
	vouch, err := curve.Open(initPlain[48:128], vouchNonce, &clientPK, &ephemeral.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: opening vouch box: %w", ErrDecryptionError)
	}
	wantVouch := append(append([]byte{}, clientEphPK[:]...), s.keys.CurvePK[:]...)
	if string(vouch) != string(wantVouch) {
		return nil, ErrInvalidVouch
	}

	remoteMeta, err := wire.DecodeMetadata(initPlain[128:])
	if err != nil {
		return nil, fmt.Errorf("curvezmq: decoding initiate metadata: %w", ErrInvalidMetadata)
	}

	identZ85, err := z85.Encode(s.keys.CurvePK[:])
	if err != nil {
		return nil, err
	}
	readyMeta := wire.NewMetadata()
	readyMeta.Set("Socket-Type", []byte("ROUTER"))
	readyMeta.Set("Identity", []byte(identZ85))

	readyNonce, err := curve.Nonce("CurveZMQREADY---", initiateCounter[:])
	if err != nil {
		return nil, err
	}
	readyBox := curve.SealAfterPrecomputation(wire.EncodeMetadata(readyMeta), readyNonce, xkey)

	stage = "ready"
	ready := make([]byte, 0, 14+len(readyBox))
	ready = append(ready, "\x05READY"...)
	ready = append(ready, initiateCounter[:]...)
	ready = append(ready, readyBox...)
	if err := wire.WriteFrame(conn, ready, true); err != nil {
		return nil, fmt.Errorf("curvezmq: sending ready: %w", err)
	}

	session := newSession(conn, reader, remoteMeta, xkey, RoleServer, s.maxFrameLen)
	if err := resolveRemoteIdentity(session); err != nil {
		return nil, err
	}
	if session.remoteIdent != nil {
		if string(session.remoteIdent) != string(clientPK[:]) {
			return nil, ErrIdentityMismatch
		}
	}
	return &Socket{session: session}, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
