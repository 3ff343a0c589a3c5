package ledgerclient

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
	"github.com/andrewwhitehead/indy-zmq/pkg/curvezmq"
)

// Handler processes one decoded ledger request and returns the result
// body to embed in the REPLY, or an error whose message becomes the
// REQNACK reason (spec.md §4.6, generalizing
// original_source's test_server_handler and node.py's
// handle_client_msg into a pluggable function).
type Handler func(request map[string]any) (map[string]any, error)

// EchoHandler is the minimal responder the original implementation
// ships for manual testing: it accepts every request and replies with
// an empty result (just the echoed reqId).
func EchoHandler(request map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

// Server accepts CurveZMQ connections and runs Handler against each
// decoded request, sending a REQACK immediately and a REPLY or
// REQNACK once Handler returns (spec.md §4.6).
type Server struct {
	inner *curvezmq.Server
}

// NewServer returns a Server identified by keys, dispatching every
// request on every accepted connection to handler.
func NewServer(handler Handler, keys curve.LongTermKeyPair) *Server {
	s := &Server{}
	s.inner = curvezmq.NewServer(func(socket *curvezmq.Socket) {
		serveConnection(socket, handler)
	}, keys)
	return s
}

// Run accepts connections on host:port until ctx is done, then closes
// the listener and every active session before returning, the
// graceful shutdown node.py performs on SIGINT/SIGTERM (spec.md §7).
func (s *Server) Run(ctx context.Context, host string, port int) error {
	ln, err := s.inner.Run(host, port)
	if err != nil {
		return err
	}
	<-ctx.Done()
	ln.Close()
	s.inner.CloseActiveSessions()
	return ctx.Err()
}

func serveConnection(socket *curvezmq.Socket, handler Handler) {
	for {
		msg, err := socket.Receive()
		if err != nil || msg == nil {
			return
		}

		var request map[string]any
		if err := json.Unmarshal(msg, &request); err != nil {
			return
		}
		reqID, ok := request["reqId"]
		if !ok {
			reqID = float64(1) // original_source: msg.get("reqId", 1)
		}

		ack, err := json.Marshal(map[string]any{"op": "REQACK", "reqId": reqID})
		if err != nil || socket.Send(ack) != nil {
			return
		}

		result, herr := handler(request)
		if herr != nil {
			nack, err := json.Marshal(map[string]any{"op": "REQNACK", "reqId": reqID, "reason": herr.Error()})
			if err != nil || socket.Send(nack) != nil {
				return
			}
			continue
		}

		if result == nil {
			result = map[string]any{}
		}
		result["reqId"] = reqID
		reply, err := json.Marshal(map[string]any{"op": "REPLY", "result": result})
		if err != nil || socket.Send(reply) != nil {
			return
		}
	}
}
