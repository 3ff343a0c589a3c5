// Package ledgerclient implements the correlated JSON request/reply
// layer carried over a curvezmq.Socket: a caller submits a request
// keyed by "reqId" and receives a handle that resolves once a
// matching REQACK/REQNACK/REPLY arrives (spec.md §4.6).
package ledgerclient

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/mr-tron/base58"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/curvezmq"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithIdentity fixes the client's own Curve25519 identity instead of
// generating a fresh one for each Dial, the same override
// original_source's ZmqClient(keypair) accepts.
func WithIdentity(identity curve.KeyPair) ClientOption {
	return func(c *Client) {
		c.identity = &identity
	}
}

// Client is one correlated connection to an identity-ledger style
// server (spec.md §4.6).
type Client struct {
	serverCurvePK [curve.KeySize]byte
	identity      *curve.KeyPair

	mu       sync.Mutex
	socket   *curvezmq.Socket
	pending  map[string]*PendingHandle
	pollDone chan struct{}
}

// NewClient returns a Client that will authenticate its peer against
// serverVerkeyBase58, the server's base58-encoded Ed25519 verification
// key (spec.md §6 Client(host, port, server_verkey_base58, ...)).
func NewClient(serverVerkeyBase58 string, opts ...ClientOption) (*Client, error) {
	raw, err := base58.Decode(serverVerkeyBase58)
	if err != nil {
		return nil, fmt.Errorf("ledgerclient: decoding server verkey: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ledgerclient: server verkey must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	curvePK, err := curve.Ed25519PublicKeyToCurve25519(ed25519.PublicKey(raw))
	if err != nil {
		return nil, err
	}

	c := &Client{
		serverCurvePK: curvePK,
		pending:       make(map[string]*PendingHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial connects to host:port and completes the CurveZMQ handshake,
// starting the background poll loop that resolves pending requests.
// Cancelling ctx before the handshake completes aborts the dial and
// closes the socket once the in-flight connect attempt settles.
func (c *Client) Dial(ctx context.Context, host string, port int) error {
	type outcome struct {
		socket *curvezmq.Socket
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		cl, err := curvezmq.NewClient(c.identity)
		if err != nil {
			ch <- outcome{nil, err}
			return
		}
		socket, err := cl.Connect(host, port, c.serverCurvePK)
		ch <- outcome{socket, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if o := <-ch; o.socket != nil {
				o.socket.Close()
			}
		}()
		return ctx.Err()
	case o := <-ch:
		if o.err != nil {
			return o.err
		}
		c.mu.Lock()
		c.socket = o.socket
		c.pollDone = make(chan struct{})
		c.mu.Unlock()
		go c.poll()
		return nil
	}
}

// Request submits msg, which must carry a "reqId" key, and returns a
// handle that resolves when the corresponding REQACK/REQNACK/REPLY
// arrives. It is an error to submit a reqId already in flight.
func (c *Client) Request(msg map[string]any) (*PendingHandle, error) {
	reqID, ok := msg["reqId"]
	if !ok {
		return nil, ErrMissingReqID
	}
	key := reqKey(reqID)

	c.mu.Lock()
	if c.socket == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if _, exists := c.pending[key]; exists {
		c.mu.Unlock()
		return nil, ErrDuplicateReqID
	}
	handle := newPendingHandle(reqID)
	c.pending[key] = handle
	socket := c.socket
	c.mu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		c.removePending(key)
		return nil, fmt.Errorf("ledgerclient: encoding request: %w", err)
	}
	if err := socket.Send(body); err != nil {
		c.removePending(key)
		return nil, err
	}
	return handle, nil
}

// Close tears down the connection and unblocks the poll loop, failing
// every still-pending request with ErrDisconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	socket := c.socket
	c.socket = nil
	pollDone := c.pollDone
	c.mu.Unlock()
	if socket == nil {
		return nil
	}
	err := socket.Close()
	if pollDone != nil {
		<-pollDone
	}
	return err
}

func (c *Client) removePending(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func (c *Client) takePending(reqID any) (*PendingHandle, bool) {
	key := reqKey(reqID)
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	return h, ok
}

func (c *Client) peekPending(reqID any) (*PendingHandle, bool) {
	key := reqKey(reqID)
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.pending[key]
	return h, ok
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*PendingHandle)
	c.mu.Unlock()
	for _, h := range pending {
		h.resolve(nil, err)
	}
}

func reqKey(reqID any) string {
	return fmt.Sprint(reqID)
}
