package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tcncore/internal/domain"
)

const (
	observationsFile     = "observations.jsonl"
	observationsMetaFile = "observations.meta.json"
)

type observationMeta struct {
	// SeqFloor survives pruning so sequence numbers never repeat.
	SeqFloor uint64 `json:"seq_floor"`
}

// ObservationFileLog is an append-only JSON-lines log of observed tokens.
//
// Appends are fsynced before they become visible. Readers take immutable
// snapshots and never block appends for longer than a slice-header copy.
type ObservationFileLog struct {
	dir string

	mu      sync.RWMutex
	f       *os.File
	records []domain.ObservedTokenRecord
	seq     uint64
}

// OpenObservationLog opens or creates the log in dir, dropping a torn final
// line left by a crash.
func OpenObservationLog(dir string) (*ObservationFileLog, error) {
	l := &ObservationFileLog{dir: dir}

	var meta observationMeta
	if err := readJSON(filepath.Join(dir, observationsMetaFile), &meta); err != nil {
		return nil, storageErr("read observation meta", err)
	}
	l.seq = meta.SeqFloor

	f, err := openJournal(l.path(), func(line []byte) error {
		var rec domain.ObservedTokenRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.Seq <= l.seq {
			return fmt.Errorf("sequence %d out of order", rec.Seq)
		}
		l.records = append(l.records, rec)
		l.seq = rec.Seq
		return nil
	})
	if err != nil {
		return nil, storageErr("open observation log", err)
	}
	l.f = f
	return l, nil
}

func (l *ObservationFileLog) path() string { return filepath.Join(l.dir, observationsFile) }

// Append persists one sighting. Repeated tokens are kept as separate records.
func (l *ObservationFileLog) Append(token domain.Token, observedAt time.Time, distance float64) (domain.ObservedTokenRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return domain.ObservedTokenRecord{}, storageErr("append observation", os.ErrClosed)
	}
	rec := domain.ObservedTokenRecord{
		Seq:        l.seq + 1,
		Token:      token,
		ObservedAt: observedAt.Round(0).UTC(),
		Distance:   distance,
	}
	off, err := l.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return domain.ObservedTokenRecord{}, storageErr("append observation", err)
	}
	if err := appendJSONLine(l.f, rec); err != nil {
		// Drop whatever part of the line made it out so the next append
		// starts clean.
		_ = l.f.Truncate(off)
		_, _ = l.f.Seek(off, io.SeekStart)
		return domain.ObservedTokenRecord{}, storageErr("append observation", err)
	}
	l.records = append(l.records, rec)
	l.seq = rec.Seq
	return rec, nil
}

// Snapshot returns a consistent view of every record appended so far.
func (l *ObservationFileLog) Snapshot() domain.ObservationSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.NewObservationSnapshot(l.records)
}

// Prune drops records observed strictly before cutoff by rewriting the log.
func (l *ObservationFileLog) Prune(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]domain.ObservedTokenRecord, 0, len(l.records))
	for _, rec := range l.records {
		if !rec.ObservedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	dropped := len(l.records) - len(kept)
	if dropped == 0 {
		return 0, nil
	}

	if err := writeJSON(filepath.Join(l.dir, observationsMetaFile), observationMeta{SeqFloor: l.seq}, 0o600); err != nil {
		return 0, storageErr("write observation meta", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range kept {
		if err := enc.Encode(rec); err != nil {
			return 0, err
		}
	}
	if err := writeFile(l.path(), buf.Bytes(), 0o600); err != nil {
		return 0, storageErr("rewrite observation log", err)
	}

	f, err := os.OpenFile(l.path(), os.O_RDWR, 0o600)
	if err != nil {
		return 0, storageErr("reopen observation log", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return 0, storageErr("reopen observation log", err)
	}
	_ = l.f.Close()
	l.f = f
	l.records = kept
	return dropped, nil
}

// Close releases the log file.
func (l *ObservationFileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Compile-time assertion that ObservationFileLog implements domain.ObservationLog.
var _ domain.ObservationLog = (*ObservationFileLog)(nil)
