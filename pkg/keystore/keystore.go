// Package keystore persists the CLI tools' long-term identity and
// address book across runs, the same schema-on-open sqlite3 shape as
// pkg/storage.MessageDB but scoped to what cmd/curvezmq-client and
// cmd/curvezmq-server actually need: one signing keypair and a
// nickname-to-verkey address book (spec.md §7 key persistence).
package keystore

import (
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mr-tron/base58"

	"github.com/andrewwhitehead/indy-zmq/pkg/curve"
)

var (
	// ErrNoIdentity is returned by LoadIdentity when the store has
	// never had a keypair saved to it.
	ErrNoIdentity = errors.New("keystore: no identity stored")
	// ErrPeerNotFound is returned by Peer when no address book entry
	// matches the requested nickname.
	ErrPeerNotFound = errors.New("keystore: peer not found")
)

// Store is a sqlite3-backed identity and address book.
type Store struct {
	db *sql.DB
}

// Peer is one address book entry: a nickname bound to a peer's
// base58-encoded verkey.
type Peer struct {
	Nickname string
	Verkey   string
}

// Open opens (creating if necessary) the sqlite3 database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("keystore: opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("keystore: enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		verkey BLOB NOT NULL,
		signkey BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS peers (
		nickname TEXT PRIMARY KEY,
		verkey TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("keystore: creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadIdentity returns the previously saved identity keypair, or
// ErrNoIdentity if SaveIdentity has never been called on this store.
func (s *Store) LoadIdentity() (curve.LongTermKeyPair, error) {
	var verkey, signkey []byte
	err := s.db.QueryRow("SELECT verkey, signkey FROM identity WHERE id = 1").Scan(&verkey, &signkey)
	if errors.Is(err, sql.ErrNoRows) {
		return curve.LongTermKeyPair{}, ErrNoIdentity
	}
	if err != nil {
		return curve.LongTermKeyPair{}, fmt.Errorf("keystore: loading identity: %w", err)
	}
	return curve.LongTermKeyPairFromSeed(ed25519.PublicKey(verkey), ed25519.PrivateKey(signkey))
}

// SaveIdentity persists keys as this store's identity, overwriting
// whatever was previously saved.
func (s *Store) SaveIdentity(keys curve.LongTermKeyPair) error {
	_, err := s.db.Exec(
		"INSERT INTO identity (id, verkey, signkey) VALUES (1, ?, ?) "+
			"ON CONFLICT (id) DO UPDATE SET verkey = excluded.verkey, signkey = excluded.signkey",
		[]byte(keys.Verkey), []byte(keys.SignKey),
	)
	if err != nil {
		return fmt.Errorf("keystore: saving identity: %w", err)
	}
	return nil
}

// LoadOrGenerateIdentity loads this store's saved identity, generating
// and persisting a fresh one on first use. This is the same
// load-or-generate pattern as cmd/relay's loadOrGenerateKey, adapted
// from an RSA PEM file to a sqlite-backed Ed25519/Curve25519 keypair.
func (s *Store) LoadOrGenerateIdentity() (curve.LongTermKeyPair, error) {
	keys, err := s.LoadIdentity()
	if err == nil {
		return keys, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return curve.LongTermKeyPair{}, err
	}

	keys, err = curve.GenerateLongTermKeyPair()
	if err != nil {
		return curve.LongTermKeyPair{}, err
	}
	if err := s.SaveIdentity(keys); err != nil {
		return curve.LongTermKeyPair{}, err
	}
	return keys, nil
}

// Peer returns the address book entry for nickname.
func (s *Store) Peer(nickname string) (Peer, error) {
	var verkey string
	err := s.db.QueryRow("SELECT verkey FROM peers WHERE nickname = ?", nickname).Scan(&verkey)
	if errors.Is(err, sql.ErrNoRows) {
		return Peer{}, ErrPeerNotFound
	}
	if err != nil {
		return Peer{}, fmt.Errorf("keystore: loading peer %q: %w", nickname, err)
	}
	return Peer{Nickname: nickname, Verkey: verkey}, nil
}

// SavePeer adds or updates an address book entry, validating that
// verkeyBase58 decodes to a well-formed Ed25519 public key.
func (s *Store) SavePeer(nickname, verkeyBase58 string) error {
	raw, err := base58.Decode(verkeyBase58)
	if err != nil {
		return fmt.Errorf("keystore: decoding verkey for %q: %w", nickname, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("keystore: verkey for %q must be %d bytes, got %d", nickname, ed25519.PublicKeySize, len(raw))
	}

	_, err = s.db.Exec(
		"INSERT INTO peers (nickname, verkey) VALUES (?, ?) "+
			"ON CONFLICT (nickname) DO UPDATE SET verkey = excluded.verkey",
		nickname, verkeyBase58,
	)
	if err != nil {
		return fmt.Errorf("keystore: saving peer %q: %w", nickname, err)
	}
	return nil
}

// Peers returns every address book entry, ordered by nickname.
func (s *Store) Peers() ([]Peer, error) {
	rows, err := s.db.Query("SELECT nickname, verkey FROM peers ORDER BY nickname")
	if err != nil {
		return nil, fmt.Errorf("keystore: listing peers: %w", err)
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		var p Peer
		if err := rows.Scan(&p.Nickname, &p.Verkey); err != nil {
			return nil, fmt.Errorf("keystore: scanning peer row: %w", err)
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}
