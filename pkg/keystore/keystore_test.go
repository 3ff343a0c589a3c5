package keystore

import (
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keystore.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadIdentityWithoutSaveReturnsErrNoIdentity(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadIdentity()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSaveAndLoadIdentityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	keys, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.SaveIdentity(keys))

	loaded, err := s.LoadIdentity()
	require.NoError(t, err)
	assert.Equal(t, keys.Verkey, loaded.Verkey)
	assert.Equal(t, keys.SignKey, loaded.SignKey)
	assert.Equal(t, keys.CurvePK, loaded.CurvePK)
	assert.Equal(t, keys.CurveSK, loaded.CurveSK)
}

func TestSaveIdentityOverwritesPrevious(t *testing.T) {
	s := openTestStore(t)

	first, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.SaveIdentity(first))

	second, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.SaveIdentity(second))

	loaded, err := s.LoadIdentity()
	require.NoError(t, err)
	assert.Equal(t, second.Verkey, loaded.Verkey)
}

func TestLoadOrGenerateIdentityPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.db")

	s1, err := Open(path)
	require.NoError(t, err)
	generated, err := s1.LoadOrGenerateIdentity()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	reloaded, err := s2.LoadOrGenerateIdentity()
	require.NoError(t, err)

	assert.Equal(t, generated.Verkey, reloaded.Verkey)
}

func TestPeerNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Peer("alice")
	assert.ErrorIs(t, err, ErrPeerNotFound)
}

func TestSaveAndLoadPeer(t *testing.T) {
	s := openTestStore(t)

	keys, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	verkey := mustEncodeVerkey(keys)

	require.NoError(t, s.SavePeer("alice", verkey))

	peer, err := s.Peer("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", peer.Nickname)
	assert.Equal(t, verkey, peer.Verkey)
}

func TestSavePeerRejectsMalformedVerkey(t *testing.T) {
	s := openTestStore(t)
	err := s.SavePeer("alice", "not-valid-base58!!!")
	assert.Error(t, err)
}

func TestSavePeerUpdatesExistingNickname(t *testing.T) {
	s := openTestStore(t)

	first, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.SavePeer("alice", mustEncodeVerkey(first)))

	second, err := curve.GenerateLongTermKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.SavePeer("alice", mustEncodeVerkey(second)))

	peer, err := s.Peer("alice")
	require.NoError(t, err)
	assert.Equal(t, mustEncodeVerkey(second), peer.Verkey)
}

func TestPeersListsAllInNicknameOrder(t *testing.T) {
	s := openTestStore(t)

	for _, nickname := range []string{"carol", "alice", "bob"} {
		keys, err := curve.GenerateLongTermKeyPair()
		require.NoError(t, err)
		require.NoError(t, s.SavePeer(nickname, mustEncodeVerkey(keys)))
	}

	peers, err := s.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{peers[0].Nickname, peers[1].Nickname, peers[2].Nickname})
}

func mustEncodeVerkey(keys curve.LongTermKeyPair) string {
	return base58.Encode(keys.Verkey)
}
