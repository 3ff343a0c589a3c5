package curvezmq

import (
	"net"
	"testing"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handshakeResult struct {
	socket *Socket
	err    error
}

// tcpPipe returns both ends of a loopback TCP connection. Unlike
// net.Pipe, writes are buffered by the kernel, so both peers can send
// their greeting before either one reads.
func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()
	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	return clientConn, <-accepted
}

func runHandshake(t *testing.T, client *Client, server *Server, serverCurvePK [curve.KeySize]byte) (*Socket, *Socket) {
	t.Helper()
	clientConn, serverConn := tcpPipe(t)

	clientCh := make(chan handshakeResult, 1)
	serverCh := make(chan handshakeResult, 1)

	go func() {
		s, err := client.handshake(clientConn, serverCurvePK)
		clientCh <- handshakeResult{s, err}
	}()
	go func() {
		s, err := server.handshake(serverConn)
		serverCh <- handshakeResult{s, err}
	}()

	cRes := <-clientCh
	sRes := <-serverCh
	require.NoError(t, cRes.err)
	require.NoError(t, sRes.err)
	return cRes.socket, sRes.socket
}

func newTestServerKeys(t *testing.T) curve.LongTermKeyPair {
	t.Helper()
	keys, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	return keys
}

func TestHandshakeEstablishesSharedSessionKey(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)

	assert.Equal(t, clientSocket.session.sessionKey, serverSocket.session.sessionKey)
}

func TestHandshakeRemoteIdentity(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)

	assert.Equal(t, serverKeys.CurvePK[:], clientSocket.RemoteIdentity())
	assert.Equal(t, client.identity.PublicKey[:], serverSocket.RemoteIdentity())
	assert.Equal(t, []byte("ROUTER"), clientSocket.RemoteSocketType())
	assert.Equal(t, []byte("DEALER"), serverSocket.RemoteSocketType())
}

func TestHandshakeClientRejectsWrongServerKey(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	wrongServerPK := serverKeys.CurvePK
	wrongServerPK[0] ^= 0xFF

	clientConn, serverConn := tcpPipe(t)
	clientCh := make(chan handshakeResult, 1)
	serverCh := make(chan handshakeResult, 1)
	go func() {
		s, err := client.handshake(clientConn, wrongServerPK)
		clientCh <- handshakeResult{s, err}
	}()
	go func() {
		s, err := server.handshake(serverConn)
		serverConn.Close()
		serverCh <- handshakeResult{s, err}
	}()

	cRes := <-clientCh
	<-serverCh
	assert.Error(t, cRes.err)
	assert.Nil(t, cRes.socket)
}

func TestHandshakeForgedVouchRejected(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	// Swap the client's long-term secret for an unrelated key after
	// construction, so the advertised public key in INITIATE no longer
	// corresponds to the secret key used to seal the vouch box: the box
	// fails authentication rather than merely carrying a bad payload.
	unrelated, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	client.identity.PrivateKey = unrelated.PrivateKey

	server := NewServer(func(*Socket) {}, serverKeys)

	clientConn, serverConn := tcpPipe(t)
	go func() {
		_, err := client.handshake(clientConn, serverKeys.CurvePK)
		_ = err
		clientConn.Close()
	}()
	_, err = server.handshake(serverConn)
	serverConn.Close()
	assert.ErrorIs(t, err, ErrDecryptionError)
}

func TestSocketSendReceiveRoundTrip(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)

	done := make(chan []byte, 1)
	go func() {
		msg, err := serverSocket.Receive()
		require.NoError(t, err)
		done <- msg
	}()

	require.NoError(t, clientSocket.Send([]byte("hello server")))
	assert.Equal(t, []byte("hello server"), <-done)

	go func() {
		msg, err := clientSocket.Receive()
		require.NoError(t, err)
		done <- msg
	}()
	require.NoError(t, serverSocket.Send([]byte("hello client")))
	assert.Equal(t, []byte("hello client"), <-done)
}

func TestSocketReceiveMultiPartReassembly(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)
	sess := clientSocket.session

	parts := [][]byte{[]byte("one-"), []byte("two-"), []byte("three")}
	outPrefix, _ := sess.directionPrefixes()
	for i, p := range parts {
		sess.sendMu.Lock()
		nonceVal := sess.sendNonce
		sess.sendNonce++
		sess.sendMu.Unlock()

		var nonceSuffix [8]byte
		putUint64(nonceSuffix[:], nonceVal)
		nonce, err := curve.Nonce(outPrefix, nonceSuffix[:])
		require.NoError(t, err)

		plaintext := make([]byte, len(p)+1)
		if i < len(parts)-1 {
			plaintext[0] = 1
		}
		copy(plaintext[1:], p)
		boxed := curve.SealAfterPrecomputation(plaintext, nonce, sess.sessionKey)

		body := append([]byte{}, "\x07MESSAGE"...)
		body = append(body, nonceSuffix[:]...)
		body = append(body, boxed...)
		require.NoError(t, wire.WriteFrame(sess.conn, body, false))
	}

	msg, err := serverSocket.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("one-two-three"), msg)
}

func TestSocketReceiveDetectsTamperedCiphertext(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)

	errCh := make(chan error, 1)
	go func() {
		_, err := serverSocket.Receive()
		errCh <- err
	}()

	sess := clientSocket.session
	sess.sendMu.Lock()
	nonceVal := sess.sendNonce
	sess.sendNonce++
	sess.sendMu.Unlock()

	outPrefix, _ := sess.directionPrefixes()
	var nonceSuffix [8]byte
	putUint64(nonceSuffix[:], nonceVal)
	nonce, err := curve.Nonce(outPrefix, nonceSuffix[:])
	require.NoError(t, err)
	boxed := curve.SealAfterPrecomputation([]byte{0, 'x'}, nonce, sess.sessionKey)
	boxed[len(boxed)-1] ^= 0xFF

	body := append([]byte{}, "\x07MESSAGE"...)
	body = append(body, nonceSuffix[:]...)
	body = append(body, boxed...)
	require.NoError(t, wire.WriteFrame(sess.conn, body, false))

	err = <-errCh
	assert.ErrorIs(t, err, ErrDecryptionError)
}

func TestSocketReceiveOrderlyClose(t *testing.T) {
	serverKeys := newTestServerKeys(t)
	client, err := NewClient(nil)
	require.NoError(t, err)
	server := NewServer(func(*Socket) {}, serverKeys)

	clientSocket, serverSocket := runHandshake(t, client, server, serverKeys.CurvePK)

	msgCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, err := serverSocket.Receive()
		msgCh <- msg
		errCh <- err
	}()

	require.NoError(t, clientSocket.Close())

	assert.Nil(t, <-msgCh)
	assert.NoError(t, <-errCh)
}
