package ledgerclient

import (
	"context"
	"sync"
)

// PendingHandle tracks one in-flight request, resolved by the poll
// loop when a REQACK/REQNACK/REPLY naming its reqId arrives (spec.md
// §4.6 PendingRequest).
type PendingHandle struct {
	reqID any

	mu     sync.Mutex
	done   chan struct{}
	acked  bool
	result map[string]any
	err    error
}

func newPendingHandle(reqID any) *PendingHandle {
	return &PendingHandle{reqID: reqID, done: make(chan struct{})}
}

// ReqID returns the reqId this handle was registered under.
func (h *PendingHandle) ReqID() any {
	return h.reqID
}

// Acked reports whether a REQACK has been observed for this request.
func (h *PendingHandle) Acked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acked
}

func (h *PendingHandle) setAcked() {
	h.mu.Lock()
	h.acked = true
	h.mu.Unlock()
}

func (h *PendingHandle) resolve(result map[string]any, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return // already resolved; a late arrival is discarded
	default:
	}
	h.result = result
	h.err = err
	close(h.done)
}

// Result blocks until a terminal REPLY or REQNACK resolves this
// request, the underlying connection is torn down, or ctx is done. On
// ctx cancellation it returns ctx.Err() immediately, but the handle
// stays registered with the Client and any later terminal response is
// still consumed (and discarded) rather than left dangling (spec.md
// §9 Open Question: cancellation).
func (h *PendingHandle) Result(ctx context.Context) (map[string]any, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
