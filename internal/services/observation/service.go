package observation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"tcncore/internal/domain"
)

// Service records sightings in an observation log.
type Service struct {
	log       domain.ObservationLog
	retention time.Duration
	logger    *slog.Logger
}

// MinRetention is the shortest retention that still lets every acceptable
// report find its matches.
func MinRetention(acceptanceWindow, tokenInterval time.Duration, maxReportLength uint32) time.Duration {
	return acceptanceWindow + time.Duration(maxReportLength)*tokenInterval
}

// New returns an observation service. Retention below minRetention is
// raised to it.
func New(log domain.ObservationLog, retention, minRetention time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{log: log, retention: max(retention, minRetention), logger: logger}
}

// Record appends one sighting. Distance is an estimate in metres and must be
// a finite non-negative number.
func (s *Service) Record(token domain.Token, observedAt time.Time, distance float64) (domain.ObservedTokenRecord, error) {
	if observedAt.IsZero() {
		return domain.ObservedTokenRecord{}, fmt.Errorf("%w: observation without time", domain.ErrMalformedInput)
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return domain.ObservedTokenRecord{}, fmt.Errorf("%w: distance %v", domain.ErrMalformedInput, distance)
	}
	return s.log.Append(token, observedAt, distance)
}

// RecordHex parses a hex token and records it.
func (s *Service) RecordHex(token string, observedAt time.Time, distance float64) (domain.ObservedTokenRecord, error) {
	tok, err := domain.ParseTokenHex(token)
	if err != nil {
		return domain.ObservedTokenRecord{}, err
	}
	return s.Record(tok, observedAt, distance)
}

// TokensInWindow returns the distinct tokens observed inside window.
func (s *Service) TokensInWindow(window domain.TimeWindow) (map[domain.Token]struct{}, error) {
	return s.log.Snapshot().TokensInWindow(window), nil
}

// Prune deletes records older than the retention period.
func (s *Service) Prune(now time.Time) (int, error) {
	n, err := s.log.Prune(now.Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("observations pruned", "count", n, "retention", s.retention)
	}
	return n, nil
}

// Retention returns the effective retention period.
func (s *Service) Retention() time.Duration { return s.retention }

// Compile-time assertion that Service implements domain.ObservationService.
var _ domain.ObservationService = (*Service)(nil)
