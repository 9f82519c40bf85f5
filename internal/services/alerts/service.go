package alerts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tcncore/internal/domain"
)

// Service creates, widens and dismisses alerts in a MatchStore.
type Service struct {
	store domain.MatchStore
	// maxWindow caps ContactEnd-ContactStart; zero means unbounded.
	maxWindow time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// New returns an alert service backed by the given store.
func New(store domain.MatchStore, maxWindow time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, maxWindow: maxWindow, log: log, now: time.Now}
}

// WithClock replaces the time source; intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Upsert inserts alert if its report has none yet, otherwise widens the
// existing one. The report is marked matched through alert.ObservedThrough in
// the same write. A dismissed alert is returned unchanged.
func (s *Service) Upsert(alert domain.Alert) (domain.Alert, error) {
	if alert.ReportID == "" {
		return domain.Alert{}, fmt.Errorf("%w: alert without report id", domain.ErrMalformedInput)
	}
	now := s.now().UTC()

	prev, ok, err := s.store.Alert(alert.ReportID)
	if err != nil {
		return domain.Alert{}, err
	}

	var next domain.Alert
	switch {
	case ok && prev.Dismissed:
		next = prev
		next.ObservedThrough = max(prev.ObservedThrough, alert.ObservedThrough)
	case ok:
		next = Widen(prev, alert, s.maxWindow)
		next.UpdatedAt = now
	default:
		next = alert
		if next.ID == "" {
			next.ID = domain.AlertID(uuid.NewString())
		}
		next.CreatedAt, next.UpdatedAt = now, now
		next.Read, next.Dismissed = false, false
		next.ContactStart, next.ContactEnd = clamp(next.ContactStart, next.ContactEnd, next.ContactEnd, s.maxWindow)
	}

	status := domain.ReportStatus{
		ReportID:        alert.ReportID,
		State:           domain.ReportMatched,
		ProcessedAt:     now,
		ObservedThrough: next.ObservedThrough,
	}
	if err := s.store.CommitReport(status, &next); err != nil {
		return domain.Alert{}, err
	}
	if !ok {
		s.log.Info("alert created", "report", alert.ReportID, "alert", next.ID, "samples", next.Samples)
	} else if !prev.Dismissed {
		s.log.Info("alert widened", "report", alert.ReportID, "alert", next.ID, "samples", next.Samples)
	}
	return next, nil
}

// List returns alerts that have not been dismissed, newest first.
func (s *Service) List() ([]domain.Alert, error) {
	all, err := s.store.ListAlerts()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if !a.Dismissed {
			out = append(out, a)
		}
	}
	return out, nil
}

// Delete dismisses the alert for a report. It is never shown again.
func (s *Service) Delete(id domain.ReportID) error {
	a, ok, err := s.store.Alert(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("alert for report %s: %w", id, ErrNotFound)
	}
	if a.Dismissed {
		return nil
	}
	a.Dismissed = true
	a.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAlert(a); err != nil {
		return err
	}
	s.log.Info("alert dismissed", "report", id, "alert", a.ID)
	return nil
}

// MarkRead sets the read flag of the alert for a report.
func (s *Service) MarkRead(id domain.ReportID, read bool) error {
	a, ok, err := s.store.Alert(id)
	if err != nil {
		return err
	}
	if !ok || a.Dismissed {
		return fmt.Errorf("alert for report %s: %w", id, ErrNotFound)
	}
	if a.Read == read {
		return nil
	}
	a.Read = read
	a.UpdatedAt = s.now().UTC()
	return s.store.UpdateAlert(a)
}

// Compile-time assertion that Service implements domain.AlertService.
var _ domain.AlertService = (*Service)(nil)
