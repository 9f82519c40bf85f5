package matching

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"tcncore/internal/domain"
	"tcncore/internal/protocol/report"
)

const lockStripes = 64

// Config tunes matching.
type Config struct {
	TokenInterval   time.Duration
	TimeSlack       time.Duration
	MaxReportLength uint32
	// Workers bounds concurrent report processing; values below 1 mean 1.
	Workers int
	// RelayURL keys the persisted fetch cursor used by Sync.
	RelayURL string
	// FetchLimit is the page size for Sync.
	FetchLimit int
}

// OwnKeyChecker tells whether a verification key belongs to this device.
type OwnKeyChecker interface {
	IsOwn(vk domain.VerificationKey) (bool, error)
}

// Deps are the collaborators of an Engine. Transport and Cursors are only
// needed by Sync. Without OwnKeys every report is treated as foreign.
type Deps struct {
	Observations domain.ObservationLog
	Matches      domain.MatchStore
	Alerts       domain.AlertService
	OwnKeys      OwnKeyChecker
	Transport    domain.ReportTransport
	Cursors      domain.SyncStateStore
}

// Stats are lifetime counters of an Engine.
type Stats struct {
	Processed int64
	Matched   int64
	Rejected  int64
	Duplicate int64
}

// Engine verifies reports and matches them against observations.
type Engine struct {
	deps Deps
	cfg  Config
	log  *slog.Logger

	stripes [lockStripes]sync.Mutex

	processed atomic.Int64
	matched   atomic.Int64
	rejected  atomic.Int64
	duplicate atomic.Int64
}

// New returns an Engine.
func New(deps Deps, cfg Config, log *slog.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FetchLimit < 1 {
		cfg.FetchLimit = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{deps: deps, cfg: cfg, log: log}
}

// Stats returns the engine's lifetime counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Processed: e.processed.Load(),
		Matched:   e.matched.Load(),
		Rejected:  e.rejected.Load(),
		Duplicate: e.duplicate.Load(),
	}
}

// Ingest processes one encoded report. A report that fails verification
// yields an OutcomeRejected together with the *domain.VerificationError; only
// storage and context errors are fatal.
func (e *Engine) Ingest(ctx context.Context, raw []byte) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, err
	}
	v, err := report.DecodeAndVerify(raw, report.VerifyOptions{MaxLength: e.cfg.MaxReportLength})
	if err != nil {
		var ve *domain.VerificationError
		if errors.As(err, &ve) {
			e.rejected.Inc()
			e.log.Debug("report rejected", "reason", ve.Reason)
			return domain.Outcome{Kind: domain.OutcomeRejected, Reason: ve.Reason}, err
		}
		return domain.Outcome{}, err
	}

	mu := e.lockFor(v.ID)
	mu.Lock()
	defer mu.Unlock()

	out, err := e.process(v)
	if err != nil {
		return domain.Outcome{ReportID: v.ID}, err
	}
	e.processed.Inc()
	switch out.Kind {
	case domain.OutcomeMatched:
		e.matched.Inc()
	case domain.OutcomeAlreadyProcessed:
		e.duplicate.Inc()
	}
	return out, nil
}

func (e *Engine) process(v *report.Verified) (domain.Outcome, error) {
	id := v.ID
	snap := e.deps.Observations.Snapshot()
	mark := snap.Seq()

	status, seen, err := e.deps.Matches.ReportStatus(id)
	if err != nil {
		return domain.Outcome{}, err
	}
	if seen && status.State.Terminal() && status.ObservedThrough >= mark {
		return domain.Outcome{ReportID: id, Kind: domain.OutcomeAlreadyProcessed}, nil
	}

	if e.deps.OwnKeys != nil {
		own, err := e.deps.OwnKeys.IsOwn(v.Report.VerificationKey)
		if err != nil {
			return domain.Outcome{}, err
		}
		if own {
			if err := e.commit(id, domain.ReportNoMatch, mark); err != nil {
				return domain.Outcome{}, err
			}
			return domain.Outcome{ReportID: id, Kind: domain.OutcomeOwnReport}, nil
		}
	}

	if !seen {
		if err := e.commit(id, domain.ReportVerified, 0); err != nil {
			return domain.Outcome{}, err
		}
		status = domain.ReportStatus{ReportID: id, State: domain.ReportVerified}
	}

	var from uint64
	if status.State.Terminal() {
		from = status.ObservedThrough
	}
	window := PlausibleWindow(v.VerifiedReport, e.cfg.TokenInterval, e.cfg.TimeSlack)
	summary, hit := Summarize(snap.Since(from), v.Disclosed.TokenSet(), window)

	if !hit {
		state := domain.ReportNoMatch
		if status.State == domain.ReportMatched {
			state = domain.ReportMatched
		}
		if err := e.commit(id, state, mark); err != nil {
			return domain.Outcome{}, err
		}
		if state == domain.ReportMatched {
			return domain.Outcome{ReportID: id, Kind: domain.OutcomeMatched}, nil
		}
		return domain.Outcome{ReportID: id, Kind: domain.OutcomeNoMatch}, nil
	}

	alert, err := e.deps.Alerts.Upsert(domain.Alert{
		ReportID:        id,
		ContactStart:    summary.Start,
		ContactEnd:      summary.End,
		MinDistance:     summary.MinDistance,
		AvgDistance:     summary.AvgDistance,
		Samples:         summary.Samples,
		Symptoms:        v.Symptoms,
		ObservedThrough: mark,
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	e.log.Info("report matched", "report", id, "samples", summary.Samples, "from_seq", from, "through_seq", mark)
	return domain.Outcome{ReportID: id, Kind: domain.OutcomeMatched, Alert: &alert}, nil
}

func (e *Engine) commit(id domain.ReportID, state domain.ReportState, mark uint64) error {
	return e.deps.Matches.CommitReport(domain.ReportStatus{
		ReportID:        id,
		State:           state,
		ProcessedAt:     time.Now().UTC(),
		ObservedThrough: mark,
	}, nil)
}

func (e *Engine) lockFor(id domain.ReportID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &e.stripes[h.Sum32()%lockStripes]
}

// ProcessNewReports ingests a batch on up to Config.Workers goroutines.
// Outcomes are returned in batch order. Verification failures are recorded as
// outcomes; the first storage error, or cancellation, is returned with the
// partial result. Reports not started before cancellation have no outcome.
func (e *Engine) ProcessNewReports(ctx context.Context, batch [][]byte) (domain.BatchResult, error) {
	outcomes := make([]domain.Outcome, len(batch))
	started := make([]bool, len(batch))

	var (
		wg       sync.WaitGroup
		slots    = make(chan struct{}, e.cfg.Workers)
		errOnce  sync.Once
		firstErr error
		failed   atomic.Bool
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		failed.Store(true)
	}

	for i, raw := range batch {
		if ctx.Err() != nil || failed.Load() {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		wg.Add(1)
		go func(i int, raw []byte) {
			defer wg.Done()
			defer func() { <-slots }()

			out, err := e.Ingest(ctx, raw)
			outcomes[i] = out
			if err != nil && !errors.Is(err, domain.ErrVerificationFailure) {
				fail(fmt.Errorf("report %d: %w", i, err))
			}
		}(i, raw)
	}
	wg.Wait()

	var res domain.BatchResult
	for i, out := range outcomes {
		if !started[i] || out.Kind == "" {
			continue
		}
		res.Outcomes = append(res.Outcomes, out)
		switch out.Kind {
		case domain.OutcomeMatched:
			res.Matched++
		case domain.OutcomeNoMatch, domain.OutcomeOwnReport:
			res.NoMatch++
		case domain.OutcomeRejected:
			res.Rejected++
		case domain.OutcomeAlreadyProcessed:
			res.Duplicate++
		}
	}

	if firstErr != nil {
		return res, firstErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	e.log.Debug("batch processed", "reports", len(batch), "matched", res.Matched, "rejected", res.Rejected)
	return res, nil
}

// Sync fetches reports newer than the stored cursor, processes them page by
// page, and advances the cursor after each page is committed.
func (e *Engine) Sync(ctx context.Context) (domain.BatchResult, error) {
	var total domain.BatchResult
	if e.deps.Transport == nil || e.deps.Cursors == nil {
		return total, errors.New("sync needs a report transport and a cursor store")
	}

	cursor, err := e.deps.Cursors.LoadCursor(e.cfg.RelayURL)
	if err != nil {
		return total, err
	}
	for {
		page, err := e.deps.Transport.FetchReports(ctx, cursor, e.cfg.FetchLimit)
		if err != nil {
			return total, fmt.Errorf("fetch reports after %d: %w", cursor, err)
		}
		if len(page) == 0 {
			return total, nil
		}

		batch := make([][]byte, len(page))
		next := cursor
		for i, fr := range page {
			batch[i] = fr.Data
			next = max(next, fr.Seq)
		}
		res, err := e.ProcessNewReports(ctx, batch)
		merge(&total, res)
		if err != nil {
			return total, err
		}
		if err := e.deps.Cursors.SaveCursor(e.cfg.RelayURL, next); err != nil {
			return total, err
		}
		e.log.Info("reports synced", "count", len(page), "cursor", next, "matched", res.Matched)

		if next == cursor || len(page) < e.cfg.FetchLimit {
			return total, nil
		}
		cursor = next
	}
}

func merge(dst *domain.BatchResult, src domain.BatchResult) {
	dst.Outcomes = append(dst.Outcomes, src.Outcomes...)
	dst.Matched += src.Matched
	dst.NoMatch += src.NoMatch
	dst.Rejected += src.Rejected
	dst.Duplicate += src.Duplicate
}

// Compile-time assertion that Engine implements domain.MatchingService.
var _ domain.MatchingService = (*Engine)(nil)
