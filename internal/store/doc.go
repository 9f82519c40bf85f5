// Package store provides file-based persistence for tcncore's core data.
//
// It contains concrete implementations of the domain storage interfaces. All
// methods are concurrency-safe via internal locking. Files live under the
// configured home directory:
//
//   - keyring.json: Report Authorization Keys (KeyFileStore). Metadata is plain
//     JSON; each seed is sealed with ChaCha20-Poly1305 under a scrypt key.
//   - observations.jsonl: the append-only observation log
//     (ObservationFileLog), one fsynced JSON line per sighting.
//   - matches.jsonl: report statuses and alerts (MatchFileStore), one fsynced
//     line per commit so a status and its alert land together.
//   - sync_state.json: per-relay fetch cursors (SyncStateFileStore).
//
// Whole-file updates go through a synced temp file and an atomic rename.
// Journals drop a torn final line on open. Every I/O error is wrapped with
// domain.ErrStorageFailure.
package store
