package ledgerclient

import "errors"

// Sentinel errors covering the request correlator failure kinds named
// in spec.md §7, wrapped with fmt.Errorf at the point of detection the
// same way pkg/curvezmq does.
var (
	ErrNotConnected   = errors.New("ledgerclient: not connected")
	ErrMissingReqID   = errors.New("ledgerclient: missing reqId")
	ErrDuplicateReqID = errors.New("ledgerclient: duplicate reqId")
	ErrDisconnected   = errors.New("ledgerclient: disconnected")
	ErrRejected       = errors.New("ledgerclient: request rejected")
)
