package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"tcncore/internal/domain"
	"tcncore/internal/util/memzero"
)

const keyringFile = "keyring.json"

// ErrKeyNotFound is returned when a key ID is not in the keyring.
var ErrKeyNotFound = errors.New("key not found")

type keyEntry struct {
	Key  domain.ReportAuthorizationKey `json:"key"`
	Seed blob                          `json:"sealed_seed"`
}

type keyring struct {
	Keys []keyEntry `json:"keys"`
}

// KeyFileStore persists Report Authorization Keys to disk. Metadata is plain
// JSON; each seed is sealed separately with the key ID as associated data.
type KeyFileStore struct {
	dir    string
	params ScryptParams
	mu     sync.Mutex
}

// NewKeyFileStore returns a KeyFileStore rooted at dir.
func NewKeyFileStore(dir string, params ScryptParams) *KeyFileStore {
	if params.N == 0 {
		params = DefaultScryptParams()
	}
	return &KeyFileStore{dir: dir, params: params}
}

func (s *KeyFileStore) path() string { return filepath.Join(s.dir, keyringFile) }

func (s *KeyFileStore) load() (keyring, error) {
	var ring keyring
	if err := readJSON(s.path(), &ring); err != nil {
		return keyring{}, storageErr("read keyring", err)
	}
	return ring, nil
}

// StoreKeys writes keys in one atomic update.
func (s *KeyFileStore) StoreKeys(passphrase string, keys ...domain.ReportAuthorizationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, err := s.load()
	if err != nil {
		return err
	}
	index := make(map[domain.KeyID]int, len(ring.Keys))
	for i, e := range ring.Keys {
		index[e.Key.ID] = i
	}

	checked := false
	for _, k := range keys {
		if i, ok := index[k.ID]; ok {
			meta := k
			meta.Seed = domain.Seed{}
			ring.Keys[i].Key = meta
			continue
		}
		if k.ID == "" || k.Seed == (domain.Seed{}) {
			return fmt.Errorf("%w: new key needs an id and a seed", domain.ErrMalformedInput)
		}
		if !checked && len(ring.Keys) > 0 {
			// Keep one passphrase for the whole keyring.
			pt, err := open(passphrase, ring.Keys[0].Seed, []byte(ring.Keys[0].Key.ID))
			if err != nil {
				return err
			}
			memzero.Zero(pt)
			checked = true
		}
		sealed, err := seal(passphrase, k.Seed[:], []byte(k.ID), s.params)
		if err != nil {
			return fmt.Errorf("seal key %s: %w", k.ID, err)
		}
		meta := k
		meta.Seed = domain.Seed{}
		index[k.ID] = len(ring.Keys)
		ring.Keys = append(ring.Keys, keyEntry{Key: meta, Seed: sealed})
	}
	return storageErr("write keyring", writeJSON(s.path(), ring, 0o600))
}

// UnsealKey returns the key with its seed decrypted.
func (s *KeyFileStore) UnsealKey(passphrase string, id domain.KeyID) (domain.ReportAuthorizationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, err := s.load()
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	for _, e := range ring.Keys {
		if e.Key.ID != id {
			continue
		}
		pt, err := open(passphrase, e.Seed, []byte(id))
		if err != nil {
			return domain.ReportAuthorizationKey{}, err
		}
		defer memzero.Zero(pt)
		if len(pt) != domain.SeedSize {
			return domain.ReportAuthorizationKey{}, fmt.Errorf("%w: sealed seed has %d bytes", domain.ErrMalformedInput, len(pt))
		}
		k := e.Key
		copy(k.Seed[:], pt)
		return k, nil
	}
	return domain.ReportAuthorizationKey{}, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
}

// ListKeys returns key metadata in creation order with seeds left zero.
func (s *KeyFileStore) ListKeys() ([]domain.ReportAuthorizationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReportAuthorizationKey, 0, len(ring.Keys))
	for _, e := range ring.Keys {
		out = append(out, e.Key)
	}
	return out, nil
}

// DeleteKeys removes the given keys; unknown IDs are ignored.
func (s *KeyFileStore) DeleteKeys(ids ...domain.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, err := s.load()
	if err != nil {
		return err
	}
	drop := make(map[domain.KeyID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := ring.Keys[:0]
	for _, e := range ring.Keys {
		if !drop[e.Key.ID] {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(ring.Keys) {
		return nil
	}
	ring.Keys = kept
	return storageErr("write keyring", writeJSON(s.path(), ring, 0o600))
}

// Compile-time assertion that KeyFileStore implements domain.KeyStore.
var _ domain.KeyStore = (*KeyFileStore)(nil)
