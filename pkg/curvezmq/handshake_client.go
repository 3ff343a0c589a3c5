package curvezmq

import (
	"bufio"
	"fmt"
	"net"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/wire"
	"github.com/andrewwhitehead/indy-zmq/pkg/z85"
)

// Client drives the initiator side of the CurveZMQ handshake
// (spec.md §4.3), playing the DEALER role.
type Client struct {
	identity    curve.KeyPair
	maxFrameLen int
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithMaxFrameLength overrides the maximum accepted MESSAGE frame body
// length (spec.md §4.5) in place of wire.DefaultMaxFrameLength.
func WithMaxFrameLength(n int) ClientOption {
	return func(c *Client) { c.maxFrameLen = n }
}

// NewClient returns a Client identified by identity, or by a freshly
// generated Curve25519 keypair if identity is the zero value.
func NewClient(identity *curve.KeyPair, opts ...ClientOption) (*Client, error) {
	c := &Client{}
	if identity != nil {
		c.identity = *identity
	} else {
		kp, err := curve.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		c.identity = kp
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect dials host:port and completes the CurveZMQ handshake
// against a server whose long-term Curve25519 public key is
// serverCurvePK, returning an established Socket.
func (c *Client) Connect(host string, port int, serverCurvePK [curve.KeySize]byte) (*Socket, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	socket, err := c.handshake(conn, serverCurvePK)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return socket, nil
}

func (c *Client) handshake(conn net.Conn, serverCurvePK [curve.KeySize]byte) (sock *Socket, err error) {
	stage := "greeting"
	defer func() {
		if err != nil {
			err = &HandshakeError{Stage: stage, Err: err}
		}
	}()

	reader := bufio.NewReader(conn)

	if _, err := conn.Write(buildGreeting(false)); err != nil {
		return nil, fmt.Errorf("curvezmq: sending greeting: %w", err)
	}
	if err := readGreeting(reader); err != nil {
		return nil, err
	}

	stage = "hello"
	ephemeral, err := curve.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}

	var helloNonceSuffix [8]byte
	if err := randBytes(helloNonceSuffix[:]); err != nil {
		return nil, err
	}
	helloNonce, err := curve.Nonce("CurveZMQHELLO---", helloNonceSuffix[:])
	if err != nil {
		return nil, err
	}
	helloSignature := curve.Seal(make([]byte, 64), helloNonce, &serverCurvePK, &ephemeral.PrivateKey)

	hello := make([]byte, 0, 200)
	hello = append(hello, "\x05HELLO\x01\x00"...)
	hello = append(hello, make([]byte, 72)...)
	hello = append(hello, ephemeral.PublicKey[:]...)
	hello = append(hello, helloNonceSuffix[:]...)
	hello = append(hello, helloSignature...)
	if err := wire.WriteFrame(conn, hello, true); err != nil {
		return nil, fmt.Errorf("curvezmq: sending hello: %w", err)
	}

	stage = "welcome"
	welcome, err := wire.ReadFrame(reader, true, 0)
	if err != nil {
		return nil, err
	}
	if welcome == nil {
		return nil, ErrDisconnected
	}
	if len(welcome) != 168 || string(welcome[:8]) != "\x07WELCOME" {
		return nil, fmt.Errorf("curvezmq: invalid welcome packet")
	}
	welcomeNonce, err := curve.Nonce("WELCOME-", welcome[8:24])
	if err != nil {
		return nil, err
	}
	welcomeInfo, err := curve.Open(welcome[24:168], welcomeNonce, &serverCurvePK, &ephemeral.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: opening welcome box: %w", ErrDecryptionError)
	}
	var serverEphPK [curve.KeySize]byte
	copy(serverEphPK[:], welcomeInfo[:32])
	serverCookie := welcomeInfo[32:]

	var vouchNonceSuffix [16]byte
	if err := randBytes(vouchNonceSuffix[:]); err != nil {
		return nil, err
	}
	vouchNonce, err := curve.Nonce("VOUCH---", vouchNonceSuffix[:])
	if err != nil {
		return nil, err
	}
	vouchPlain := append(append([]byte{}, ephemeral.PublicKey[:]...), serverCurvePK[:]...)
	vouchBox := curve.Seal(vouchPlain, vouchNonce, &serverEphPK, &c.identity.PrivateKey)

	meta := wire.NewMetadata()
	meta.Set("Socket-Type", []byte("DEALER"))
	identZ85, err := z85.Encode(c.identity.PublicKey[:])
	if err != nil {
		return nil, err
	}
	meta.Set("Identity", []byte(identZ85))

	initPlain := append(append([]byte{}, c.identity.PublicKey[:]...), vouchNonceSuffix[:]...)
	initPlain = append(initPlain, vouchBox...)
	initPlain = append(initPlain, wire.EncodeMetadata(meta)...)

	xkey := curve.Precompute(&serverEphPK, &ephemeral.PrivateKey)
	initNonce, err := curve.Nonce("CurveZMQINITIATE", initiateCounter[:])
	if err != nil {
		return nil, err
	}
	initBox := curve.SealAfterPrecomputation(initPlain, initNonce, xkey)

	initiate := make([]byte, 0, 113+len(initBox))
	initiate = append(initiate, "\x08INITIATE"...)
	initiate = append(initiate, serverCookie...)
	initiate = append(initiate, initiateCounter[:]...)
	initiate = append(initiate, initBox...)
	stage = "initiate"
	if err := wire.WriteFrame(conn, initiate, true); err != nil {
		return nil, fmt.Errorf("curvezmq: sending initiate: %w", err)
	}

	stage = "ready"
	ready, err := wire.ReadFrame(reader, true, 0)
	if err != nil {
		return nil, err
	}
	if ready == nil {
		return nil, ErrDisconnected
	}
	if len(ready) < 30 || string(ready[:6]) != "\x05READY" {
		return nil, fmt.Errorf("curvezmq: invalid ready packet")
	}
	readyNonce, err := curve.Nonce("CurveZMQREADY---", ready[6:14])
	if err != nil {
		return nil, err
	}
	readyMeta, err := curve.OpenAfterPrecomputation(ready[14:], readyNonce, xkey)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: opening ready box: %w", ErrDecryptionError)
	}
	remoteMeta, err := wire.DecodeMetadata(readyMeta)
	if err != nil {
		return nil, fmt.Errorf("curvezmq: decoding ready metadata: %w", ErrInvalidMetadata)
	}

	session := newSession(conn, reader, remoteMeta, xkey, RoleClient, c.maxFrameLen)
	if err := resolveRemoteIdentity(session); err != nil {
		return nil, err
	}
	if session.remoteIdent != nil {
		if string(session.remoteIdent) != string(serverCurvePK[:]) {
			return nil, ErrIdentityMismatch
		}
	}
	return &Socket{session: session}, nil
}
