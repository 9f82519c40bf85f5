package matching_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/memo"
	"tcncore/internal/protocol/ratchet"
	"tcncore/internal/protocol/report"
	"tcncore/internal/services/alerts"
	"tcncore/internal/services/matching"
	"tcncore/internal/store"
)

const interval = 15 * time.Minute

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type ownKeys map[domain.VerificationKey]bool

func (o ownKeys) IsOwn(vk domain.VerificationKey) (bool, error) { return o[vk], nil }

type device struct {
	rak domain.ReportAuthorizationKey
	rt  *ratchet.Ratchet
}

func newDevice(t *testing.T, fill byte) device {
	t.Helper()
	var seed domain.Seed
	for i := range seed {
		seed[i] = fill
	}
	m, err := crypto.DeriveRAK(seed)
	require.NoError(t, err)
	rt, err := ratchet.New(m.RatchetRoot[:], m.VerificationKey)
	require.NoError(t, err)
	return device{
		rak: domain.ReportAuthorizationKey{
			ID:              crypto.KeyIDFor(m.VerificationKey),
			Seed:            seed,
			VerificationKey: m.VerificationKey,
			CreatedAt:       t0,
		},
		rt: rt,
	}
}

// tokenAt is the token the device broadcast during period i.
func (d device) tokenAt(i uint32) (domain.Token, time.Time) {
	return d.rt.Token(i), t0.Add(time.Duration(i) * interval)
}

func (d device) report(t *testing.T, start, length uint32, reportTime time.Time) []byte {
	t.Helper()
	_, from := d.tokenAt(start)
	return d.reportFrom(t, start, length, reportTime, from)
}

// reportFrom builds a report whose memo claims broadcast began at from; a
// zero from leaves the claim out.
func (d device) reportFrom(t *testing.T, start, length uint32, reportTime, from time.Time) []byte {
	t.Helper()
	m, err := memo.Encode(domain.SymptomMemo{ReportTime: reportTime, BroadcastFrom: from, Fever: domain.FeverMild})
	require.NoError(t, err)
	r, err := report.Build(d.rak, start, length, m, report.BuildOptions{Now: reportTime})
	require.NoError(t, err)
	return report.Encode(r)
}

type harness struct {
	obs     *store.ObservationFileLog
	matches *store.MatchFileStore
	alerts  *alerts.Service
	own     ownKeys
	engine  *matching.Engine
}

func newHarness(t *testing.T, cfg matching.Config, extra ...func(*matching.Deps)) *harness {
	t.Helper()
	dir := t.TempDir()
	obs, err := store.OpenObservationLog(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Close() })
	ms, err := store.OpenMatchStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })

	h := &harness{obs: obs, matches: ms, alerts: alerts.New(ms, 0, nil), own: ownKeys{}}
	deps := matching.Deps{Observations: obs, Matches: ms, Alerts: h.alerts, OwnKeys: h.own}
	for _, f := range extra {
		f(&deps)
	}
	if cfg.TokenInterval == 0 {
		cfg.TokenInterval = interval
	}
	if cfg.TimeSlack == 0 {
		cfg.TimeSlack = 24 * time.Hour
	}
	h.engine = matching.New(deps, cfg, nil)
	return h
}

func (h *harness) hear(t *testing.T, d device, dist float64, idx ...uint32) {
	t.Helper()
	for _, i := range idx {
		tok, at := d.tokenAt(i)
		_, err := h.obs.Append(tok, at, dist)
		require.NoError(t, err)
	}
}

func span(from, to uint32) []uint32 {
	var out []uint32
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func TestIngest_MatchesOnlyDisclosedRange(t *testing.T) {
	a := newDevice(t, 0xA1)

	t.Run("overlap", func(t *testing.T) {
		h := newHarness(t, matching.Config{})
		h.hear(t, a, 2, span(0, 12)...)

		out, err := h.engine.Ingest(context.Background(), a.report(t, 3, 7, t0.Add(4*time.Hour)))
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeMatched, out.Kind)
		require.NotNil(t, out.Alert)
		require.Equal(t, 7, out.Alert.Samples)

		require.True(t, out.Alert.ContactStart.Equal(t0.Add(3*interval)))
		require.True(t, out.Alert.ContactEnd.Equal(t0.Add(9*interval)))
	})

	t.Run("disjoint", func(t *testing.T) {
		h := newHarness(t, matching.Config{})
		h.hear(t, a, 2, span(0, 3)...)

		out, err := h.engine.Ingest(context.Background(), a.report(t, 3, 7, t0.Add(4*time.Hour)))
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeNoMatch, out.Kind)

		list, err := h.alerts.List()
		require.NoError(t, err)
		require.Empty(t, list)

		st, ok, err := h.matches.ReportStatus(out.ReportID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.ReportNoMatch, st.State)
	})
}

func TestIngest_Idempotent(t *testing.T) {
	a := newDevice(t, 0xA2)
	h := newHarness(t, matching.Config{})
	h.hear(t, a, 1.5, 4, 5)
	raw := a.report(t, 0, 8, t0.Add(3*time.Hour))

	first, err := h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, first.Kind)

	again, err := h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAlreadyProcessed, again.Kind)

	list, err := h.alerts.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, list[0].Samples)
	require.Equal(t, first.Alert.ID, list[0].ID)
	require.Equal(t, int64(1), h.engine.Stats().Duplicate)
}

func TestIngest_RedeliveryMatchesOnlyNewObservations(t *testing.T) {
	a := newDevice(t, 0xA3)
	h := newHarness(t, matching.Config{})
	raw := a.report(t, 0, 8, t0.Add(3*time.Hour))

	out, err := h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNoMatch, out.Kind)

	// Sightings that reach the log late turn NoMatch into Matched.
	h.hear(t, a, 4, 1, 2)
	out, err = h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out.Kind)
	require.Equal(t, 2, out.Alert.Samples)
	require.Equal(t, 4.0, out.Alert.MinDistance)

	// A further sighting widens the alert without recounting the old ones.
	h.hear(t, a, 1, 6)
	out, err = h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out.Kind)
	require.Equal(t, 3, out.Alert.Samples)
	require.Equal(t, 1.0, out.Alert.MinDistance)
	require.InDelta(t, 3.0, out.Alert.AvgDistance, 1e-9)
	require.True(t, out.Alert.ContactStart.Equal(t0.Add(1*interval)))
	require.True(t, out.Alert.ContactEnd.Equal(t0.Add(6*interval)))

	// Unrelated sightings advance the mark but never downgrade the report.
	b := newDevice(t, 0xB3)
	h.hear(t, b, 1, 0)
	out, err = h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out.Kind)

	st, _, err := h.matches.ReportStatus(out.ReportID)
	require.NoError(t, err)
	require.Equal(t, domain.ReportMatched, st.State)
	require.Equal(t, h.obs.Snapshot().Seq(), st.ObservedThrough)

	alert, ok, err := h.matches.Alert(out.ReportID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, alert.Samples)
}

func TestIngest_DismissedAlertStaysDismissed(t *testing.T) {
	a := newDevice(t, 0xA4)
	h := newHarness(t, matching.Config{})
	h.hear(t, a, 2, 2)
	raw := a.report(t, 0, 8, t0.Add(3*time.Hour))

	out, err := h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, h.alerts.Delete(out.ReportID))

	h.hear(t, a, 1, 3)
	_, err = h.engine.Ingest(context.Background(), raw)
	require.NoError(t, err)

	list, err := h.alerts.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestIngest_OwnReport(t *testing.T) {
	a := newDevice(t, 0xA5)
	h := newHarness(t, matching.Config{})
	h.own[a.rak.VerificationKey] = true
	h.hear(t, a, 1, 1)

	out, err := h.engine.Ingest(context.Background(), a.report(t, 0, 4, t0.Add(2*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeOwnReport, out.Kind)

	list, err := h.alerts.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

// Device A heard B's tokens from key K1 only; B reports each key separately.
func TestIngest_SeparateKeysSeparateReports(t *testing.T) {
	k1 := newDevice(t, 0x11)
	k2 := newDevice(t, 0x12)
	h := newHarness(t, matching.Config{})
	h.hear(t, k1, 3, 5, 6)

	out1, err := h.engine.Ingest(context.Background(), k1.report(t, 0, 10, t0.Add(3*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out1.Kind)

	out2, err := h.engine.Ingest(context.Background(), k2.report(t, 0, 10, t0.Add(3*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNoMatch, out2.Kind)
	require.NotEqual(t, out1.ReportID, out2.ReportID)
}

func TestIngest_OutsidePlausibleWindow(t *testing.T) {
	a := newDevice(t, 0xA6)
	h := newHarness(t, matching.Config{TimeSlack: time.Minute})
	h.hear(t, a, 1, 2)

	week := t0.Add(7 * 24 * time.Hour)

	// Claimed broadcast days after the sighting.
	out, err := h.engine.Ingest(context.Background(), a.reportFrom(t, 0, 4, week, week.Add(-2*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNoMatch, out.Kind)

	// No broadcast start: the window trails the report time.
	out, err = h.engine.Ingest(context.Background(), a.reportFrom(t, 0, 5, week, time.Time{}))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNoMatch, out.Kind)
}

// A key retired days before the report still matches through its broadcast
// start, far outside a window anchored on the report time.
func TestIngest_OldRangeMatchesThroughBroadcastStart(t *testing.T) {
	a := newDevice(t, 0xAA)
	h := newHarness(t, matching.Config{TimeSlack: time.Hour})
	h.hear(t, a, 2, 50)

	out, err := h.engine.Ingest(context.Background(), a.report(t, 0, 96, t0.Add(10*24*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out.Kind)
}

// Device A heard device B's key K1 once, at index 42; B reports [0,100).
func TestIngest_SingleSightingAlert(t *testing.T) {
	k1 := newDevice(t, 0x42)
	h := newHarness(t, matching.Config{})
	tok, seenAt := k1.tokenAt(42)
	_, err := h.obs.Append(tok, seenAt, 1.5)
	require.NoError(t, err)

	out, err := h.engine.Ingest(context.Background(), k1.report(t, 0, 100, t0.Add(26*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMatched, out.Kind)

	list, err := h.alerts.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	a := list[0]
	require.Equal(t, out.ReportID, a.ReportID)
	require.True(t, a.ContactStart.Equal(seenAt))
	require.True(t, a.ContactEnd.Equal(seenAt))
	require.Equal(t, 1.5, a.MinDistance)
	require.Equal(t, 1.5, a.AvgDistance)
	require.Equal(t, 1, a.Samples)
}

func TestPlausibleWindow(t *testing.T) {
	rt := t0.Add(10 * time.Hour)
	w := matching.PlausibleWindow(domain.VerifiedReport{
		Report:   domain.Report{Length: 3},
		Symptoms: domain.SymptomMemo{ReportTime: rt},
	}, interval, time.Hour)
	require.True(t, w.From.Equal(rt.Add(-4*interval-time.Hour)))
	require.True(t, w.To.Equal(rt.Add(time.Hour)))

	from := t0.Add(time.Hour)
	w = matching.PlausibleWindow(domain.VerifiedReport{
		Report:   domain.Report{Length: 3},
		Symptoms: domain.SymptomMemo{ReportTime: rt, BroadcastFrom: from},
	}, interval, time.Hour)
	require.True(t, w.From.Equal(from.Add(-time.Hour)))
	require.True(t, w.To.Equal(from.Add(3*interval+time.Hour)))

	open := matching.PlausibleWindow(domain.VerifiedReport{Report: domain.Report{Length: 3}}, interval, time.Hour)
	require.True(t, open.Contains(t0.Add(-1000*time.Hour)))
}

func TestIngest_Rejected(t *testing.T) {
	a := newDevice(t, 0xA7)
	h := newHarness(t, matching.Config{})
	raw := a.report(t, 0, 4, t0.Add(time.Hour))
	raw[len(raw)-1] ^= 0xff

	out, err := h.engine.Ingest(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrVerificationFailure)
	require.Equal(t, domain.OutcomeRejected, out.Kind)
	require.Equal(t, domain.ReasonBadSignature, out.Reason)

	_, err = h.engine.Ingest(context.Background(), []byte("garbage"))
	require.ErrorIs(t, err, domain.ErrVerificationFailure)
}

func TestIngest_RejectsOversizedRange(t *testing.T) {
	a := newDevice(t, 0xA8)
	h := newHarness(t, matching.Config{MaxReportLength: 4})
	out, err := h.engine.Ingest(context.Background(), a.report(t, 0, 5, t0.Add(time.Hour)))
	require.ErrorIs(t, err, domain.ErrVerificationFailure)
	require.Equal(t, domain.ReasonRangeTooLarge, out.Reason)
}

func TestProcessNewReports_Batch(t *testing.T) {
	h := newHarness(t, matching.Config{Workers: 4})
	var batch [][]byte
	for i := 0; i < 8; i++ {
		d := newDevice(t, byte(0x20+i))
		if i%2 == 0 {
			h.hear(t, d, float64(i+1), 3)
		}
		batch = append(batch, d.report(t, 0, 6, t0.Add(2*time.Hour)))
	}
	batch = append(batch, []byte("not a report"), batch[0])

	res, err := h.engine.ProcessNewReports(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(batch))
	require.Equal(t, 1, res.Rejected)
	// batch[0] appears twice; whichever copy runs second is a duplicate.
	require.Equal(t, 4, res.Matched)
	require.Equal(t, 1, res.Duplicate)
	require.Equal(t, 4, res.NoMatch)

	list, err := h.alerts.List()
	require.NoError(t, err)
	require.Len(t, list, 4)
}

func TestProcessNewReports_Cancelled(t *testing.T) {
	a := newDevice(t, 0xA9)
	h := newHarness(t, matching.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.engine.ProcessNewReports(ctx, [][]byte{a.report(t, 0, 4, t0.Add(time.Hour))})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Outcomes)

	_, ok, err := h.matches.ReportStatus(report.ID(mustDecode(t, a.report(t, 0, 4, t0.Add(time.Hour)))))
	require.NoError(t, err)
	require.False(t, ok)
}

func mustDecode(t *testing.T, raw []byte) domain.Report {
	t.Helper()
	r, err := report.Decode(raw)
	require.NoError(t, err)
	return r
}

type pagedTransport struct {
	mu      sync.Mutex
	reports [][]byte
	fail    error
	calls   int
}

func (p *pagedTransport) SubmitReport(context.Context, []byte) error { return errors.New("read only") }

func (p *pagedTransport) FetchReports(_ context.Context, after uint64, limit int) ([]domain.FetchedReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	var out []domain.FetchedReport
	for i := after; i < uint64(len(p.reports)) && len(out) < limit; i++ {
		out = append(out, domain.FetchedReport{Seq: i + 1, Data: p.reports[i]})
	}
	return out, nil
}

func TestSync_PagesAndAdvancesCursor(t *testing.T) {
	tr := &pagedTransport{}
	cursors := store.NewSyncStateFileStore(t.TempDir())
	h := newHarness(t, matching.Config{RelayURL: "http://relay", FetchLimit: 2}, func(d *matching.Deps) {
		d.Transport = tr
		d.Cursors = cursors
	})

	a := newDevice(t, 0xC1)
	h.hear(t, a, 1, 1)
	tr.reports = append(tr.reports, a.report(t, 0, 4, t0.Add(time.Hour)))
	for i := 0; i < 4; i++ {
		tr.reports = append(tr.reports, newDevice(t, byte(0xC2+i)).report(t, 0, 4, t0.Add(time.Hour)))
	}

	res, err := h.engine.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Matched)
	require.Equal(t, 4, res.NoMatch)

	cur, err := cursors.LoadCursor("http://relay")
	require.NoError(t, err)
	require.Equal(t, uint64(5), cur)

	// Nothing new: one empty fetch from the saved cursor.
	calls := tr.calls
	res, err = h.engine.Sync(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Outcomes)
	require.Equal(t, calls+1, tr.calls)
}

func TestSync_FetchErrorKeepsCursor(t *testing.T) {
	tr := &pagedTransport{fail: errors.New("relay down")}
	cursors := store.NewSyncStateFileStore(t.TempDir())
	require.NoError(t, cursors.SaveCursor("http://relay", 7))
	h := newHarness(t, matching.Config{RelayURL: "http://relay"}, func(d *matching.Deps) {
		d.Transport = tr
		d.Cursors = cursors
	})

	_, err := h.engine.Sync(context.Background())
	require.Error(t, err)

	cur, err := cursors.LoadCursor("http://relay")
	require.NoError(t, err)
	require.Equal(t, uint64(7), cur)
}
