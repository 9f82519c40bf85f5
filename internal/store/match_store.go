package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tcncore/internal/domain"
)

const matchesFile = "matches.jsonl"

// ErrAlertNotFound is returned when updating an alert that does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// matchEntry is one journal line. Status and alert written together land or
// vanish together.
type matchEntry struct {
	Status *domain.ReportStatus `json:"status,omitempty"`
	Alert  *domain.Alert        `json:"alert,omitempty"`
}

// MatchFileStore journals report statuses and alerts as JSON lines and keeps
// the latest state of each in memory.
type MatchFileStore struct {
	dir string

	mu       sync.Mutex
	f        *os.File
	lines    int
	statuses map[domain.ReportID]domain.ReportStatus
	alerts   map[domain.ReportID]domain.Alert
}

// OpenMatchStore opens or creates the match journal in dir.
func OpenMatchStore(dir string) (*MatchFileStore, error) {
	s := &MatchFileStore{
		dir:      dir,
		statuses: make(map[domain.ReportID]domain.ReportStatus),
		alerts:   make(map[domain.ReportID]domain.Alert),
	}
	f, err := openJournal(s.path(), func(line []byte) error {
		var e matchEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		s.apply(e)
		s.lines++
		return nil
	})
	if err != nil {
		return nil, storageErr("open match store", err)
	}
	s.f = f
	if s.lines > 2*(len(s.statuses)+len(s.alerts))+64 {
		if err := s.compact(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *MatchFileStore) path() string { return filepath.Join(s.dir, matchesFile) }

func (s *MatchFileStore) apply(e matchEntry) {
	if e.Status != nil {
		s.statuses[e.Status.ReportID] = *e.Status
	}
	if e.Alert != nil {
		s.alerts[e.Alert.ReportID] = *e.Alert
	}
}

func (s *MatchFileStore) write(e matchEntry) error {
	if s.f == nil {
		return storageErr("write match journal", os.ErrClosed)
	}
	off, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return storageErr("write match journal", err)
	}
	if err := appendJSONLine(s.f, e); err != nil {
		_ = s.f.Truncate(off)
		_, _ = s.f.Seek(off, io.SeekStart)
		return storageErr("write match journal", err)
	}
	s.apply(e)
	s.lines++
	return nil
}

// ReportStatus returns the recorded status of a report.
func (s *MatchFileStore) ReportStatus(id domain.ReportID) (domain.ReportStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[id]
	return st, ok, nil
}

// CommitReport records status and optional alert in one journal line. A
// dismissed alert stays dismissed whatever alert is passed in.
func (s *MatchFileStore) CommitReport(status domain.ReportStatus, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := matchEntry{Status: &status}
	if alert != nil {
		if alert.ReportID != status.ReportID {
			return fmt.Errorf("%w: alert for %s committed with status for %s", domain.ErrMalformedInput, alert.ReportID, status.ReportID)
		}
		a := *alert
		if prev, ok := s.alerts[a.ReportID]; ok && prev.Dismissed {
			a = prev
		}
		e.Alert = &a
	}
	return s.write(e)
}

// Alert returns the alert for a report.
func (s *MatchFileStore) Alert(id domain.ReportID) (domain.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	return a, ok, nil
}

// ListAlerts returns every alert, dismissed ones included, newest first.
func (s *MatchFileStore) ListAlerts() ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ReportID < out[j].ReportID
	})
	return out, nil
}

// UpdateAlert replaces an existing alert. Un-dismissing is refused.
func (s *MatchFileStore) UpdateAlert(alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.alerts[alert.ReportID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, alert.ReportID)
	}
	if prev.Dismissed {
		alert.Dismissed = true
	}
	return s.write(matchEntry{Alert: &alert})
}

// compact rewrites the journal with one line per report.
func (s *MatchFileStore) compact() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	lines := 0
	for id, st := range s.statuses {
		e := matchEntry{Status: &st}
		if a, ok := s.alerts[id]; ok {
			e.Alert = &a
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
		lines++
	}
	for id, a := range s.alerts {
		if _, ok := s.statuses[id]; ok {
			continue
		}
		if err := enc.Encode(matchEntry{Alert: &a}); err != nil {
			return err
		}
		lines++
	}
	if err := writeFile(s.path(), buf.Bytes(), 0o600); err != nil {
		return storageErr("compact match journal", err)
	}
	f, err := os.OpenFile(s.path(), os.O_RDWR, 0o600)
	if err != nil {
		return storageErr("reopen match journal", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return storageErr("reopen match journal", err)
	}
	if s.f != nil {
		_ = s.f.Close()
	}
	s.f = f
	s.lines = lines
	return nil
}

// Close releases the journal file.
func (s *MatchFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Compile-time assertion that MatchFileStore implements domain.MatchStore.
var _ domain.MatchStore = (*MatchFileStore)(nil)
