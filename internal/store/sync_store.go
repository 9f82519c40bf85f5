package store

import (
	"path/filepath"
	"sync"

	"tcncore/internal/domain"
)

const syncStateFile = "sync_state.json"

type syncState struct {
	// Cursors maps relay base URL to the last relay sequence fully processed.
	Cursors map[string]uint64 `json:"cursors"`
}

// SyncStateFileStore persists per-relay fetch cursors to disk.
type SyncStateFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSyncStateFileStore returns a SyncStateFileStore rooted at dir.
func NewSyncStateFileStore(dir string) *SyncStateFileStore {
	return &SyncStateFileStore{dir: dir}
}

// SaveCursor stores the cursor for relayURL. Cursors never move backwards.
func (s *SyncStateFileStore) SaveCursor(relayURL string, cursor uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, syncStateFile)
	var st syncState
	if err := readJSON(path, &st); err != nil {
		return storageErr("read sync state", err)
	}
	if st.Cursors == nil {
		st.Cursors = make(map[string]uint64)
	}
	if cursor <= st.Cursors[relayURL] {
		return nil
	}
	st.Cursors[relayURL] = cursor
	return storageErr("write sync state", writeJSON(path, st, 0o600))
}

// LoadCursor returns the stored cursor for relayURL, or 0.
func (s *SyncStateFileStore) LoadCursor(relayURL string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st syncState
	if err := readJSON(filepath.Join(s.dir, syncStateFile), &st); err != nil {
		return 0, storageErr("read sync state", err)
	}
	return st.Cursors[relayURL], nil
}

// Compile-time assertion that SyncStateFileStore implements domain.SyncStateStore.
var _ domain.SyncStateStore = (*SyncStateFileStore)(nil)
