package ledgerclient

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// poll reads and dispatches response frames until the socket is torn
// down, mirroring IndyClient._poll. It owns the terminal failure path:
// any protocol violation here fails every still-pending request
// rather than returning an error to an unrelated caller.
func (c *Client) poll() {
	defer close(c.pollDone)

	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()
	if socket == nil {
		// Close ran before the loop started.
		c.failAll(ErrDisconnected)
		return
	}

	for {
		msg, err := socket.Receive()
		if err != nil {
			c.failAll(fmt.Errorf("%w: %v", ErrDisconnected, err))
			return
		}
		if msg == nil {
			c.failAll(ErrDisconnected)
			return
		}

		var response map[string]any
		if err := json.Unmarshal(msg, &response); err != nil {
			c.failAll(fmt.Errorf("ledgerclient: decoding response: %v: %w", err, ErrDisconnected))
			return
		}
		op, _ := response["op"].(string)

		switch op {
		case "REQACK":
			reqID, ok := response["reqId"]
			if !ok {
				continue
			}
			if h, found := c.peekPending(reqID); found {
				h.setAcked()
			}

		case "REQNACK":
			reqID, ok := response["reqId"]
			if !ok {
				continue
			}
			reason, _ := response["reason"].(string)
			rejectErr := ErrRejected
			if reason != "" {
				rejectErr = fmt.Errorf("%s: %w", reason, ErrRejected)
			}
			if h, found := c.takePending(reqID); found {
				h.resolve(nil, rejectErr)
			} else {
				c.failAll(fmt.Errorf("ledgerclient: reqnack for unknown reqId: %w", ErrDisconnected))
				return
			}

		case "REPLY":
			result, ok := response["result"].(map[string]any)
			if !ok {
				c.failAll(fmt.Errorf("ledgerclient: reply missing result: %w", ErrDisconnected))
				return
			}
			reqID, ok := result["reqId"]
			if !ok {
				c.failAll(fmt.Errorf("ledgerclient: reply result missing reqId: %w", ErrDisconnected))
				return
			}
			if h, found := c.takePending(reqID); found {
				h.resolve(result, nil)
			} else {
				c.failAll(fmt.Errorf("ledgerclient: reply for unknown reqId: %w", ErrDisconnected))
				return
			}

		default:
			// Unhandled operation; a future protocol addition the
			// caller's handler doesn't need to see. Not fatal.
		}
	}
}
