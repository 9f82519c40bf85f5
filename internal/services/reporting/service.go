package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tcncore/internal/domain"
	"tcncore/internal/protocol/memo"
	"tcncore/internal/protocol/report"
	"tcncore/internal/services/keys"
)

// ErrNothingToReport is returned when every broadcast token of every
// unexpired key has already been published.
var ErrNothingToReport = errors.New("no unpublished tokens to report")

// Options bounds the reports this service builds.
type Options struct {
	MaxReportLength uint32
	ReplayTolerance uint32
}

// Built is one signed report and its wire bytes.
type Built struct {
	ID     domain.ReportID
	Report domain.Report
	Wire   []byte
}

// Service builds reports from the device's keys and submits them.
type Service struct {
	keys      *keys.Service
	transport domain.ReportTransport
	opts      Options
	log       *slog.Logger
}

// New returns a reporting service. transport may be nil, in which case
// Build is still usable but BuildAndSubmit fails.
func New(k *keys.Service, transport domain.ReportTransport, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{keys: k, transport: transport, opts: opts, log: log}
}

// Build signs one report per unexpired key that has unpublished broadcast
// tokens, oldest key first, and records those tokens as published. Keys
// retired by rotation are included, so the reports together cover every
// token still inside the acceptance window.
func (s *Service) Build(passphrase string, symptoms domain.SymptomMemo, now time.Time) ([]Built, error) {
	if symptoms.ReportTime.IsZero() {
		symptoms.ReportTime = now.UTC().Truncate(time.Second)
	}

	raks, err := s.keys.Reportable(passphrase, now)
	if err != nil {
		return nil, err
	}
	interval := s.keys.Policy().TokenInterval

	var out []Built
	var marks []func() error
	for _, rak := range raks {
		start, length, ok := s.rangeFor(rak)
		if !ok {
			continue
		}
		sm := symptoms
		sm.BroadcastFrom = rak.CreatedAt.Add(time.Duration(start) * interval).UTC().Truncate(time.Second)
		m, err := memo.Encode(sm)
		if err != nil {
			return nil, err
		}
		r, err := report.Build(rak, start, length, m, report.BuildOptions{
			MaxLength:       s.opts.MaxReportLength,
			ReplayTolerance: s.opts.ReplayTolerance,
			Now:             now,
		})
		if err != nil {
			return nil, fmt.Errorf("report for key %s: %w", rak.ID, err)
		}
		id, end := rak.ID, start+length
		marks = append(marks, func() error { return s.keys.MarkPublished(id, end) })
		out = append(out, Built{ID: report.ID(r), Report: r, Wire: report.Encode(r)})
		s.log.Info("report built", "report", out[len(out)-1].ID, "key", rak.ID, "start", start, "length", length)
	}
	if len(out) == 0 {
		return nil, ErrNothingToReport
	}
	for _, mark := range marks {
		if err := mark(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BuildAndSubmit builds the device's reports and submits each through the
// transport. On a transport failure the IDs submitted so far are returned
// with the error.
func (s *Service) BuildAndSubmit(
	ctx context.Context,
	passphrase string,
	symptoms domain.SymptomMemo,
	now time.Time,
) ([]domain.ReportID, error) {
	if s.transport == nil {
		return nil, errors.New("no report transport configured")
	}
	built, err := s.Build(passphrase, symptoms, now)
	if err != nil {
		return nil, err
	}
	ids := make([]domain.ReportID, 0, len(built))
	for _, b := range built {
		if err := s.transport.SubmitReport(ctx, b.Wire); err != nil {
			return ids, fmt.Errorf("submit report %s: %w", b.ID, err)
		}
		ids = append(ids, b.ID)
	}
	s.log.Info("reports submitted", "count", len(ids))
	return ids, nil
}

// rangeFor picks [start, start+length) for a key: everything handed out for
// broadcast and not yet published, newest MaxReportLength indices only.
func (s *Service) rangeFor(rak domain.ReportAuthorizationKey) (uint32, uint32, bool) {
	maxLen := s.opts.MaxReportLength
	if maxLen == 0 {
		maxLen = report.DefaultMaxLength
	}
	end := uint64(rak.Cursor) + 1
	if end <= uint64(rak.PublishedThrough) {
		return 0, 0, false
	}
	start := uint64(rak.PublishedThrough)
	if end-start > uint64(maxLen) {
		start = end - uint64(maxLen)
	}
	return uint32(start), uint32(end - start), true
}

// Compile-time assertion that Service implements domain.ReportingService.
var _ domain.ReportingService = (*Service)(nil)
