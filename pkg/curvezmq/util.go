package curvezmq

import (
	"crypto/rand"
	"fmt"

	"github.com/andrewwhitehead/indy-zmq/pkg/z85"
)

func randBytes(b []byte) error {
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("curvezmq: generating random bytes: %w", err)
	}
	return nil
}

// resolveRemoteIdentity decodes the peer's Z85-encoded Identity
// metadata field into session.remoteIdent, if present.
func resolveRemoteIdentity(session *Session) error {
	raw, ok := session.remoteMeta.Get("Identity")
	if !ok || len(raw) == 0 {
		return nil
	}
	decoded, err := z85.Decode(string(raw))
	if err != nil {
		return fmt.Errorf("curvezmq: decoding peer identity: %w", err)
	}
	session.remoteIdent = decoded
	return nil
}
