package matching

import (
	"time"

	"tcncore/internal/domain"
)

// PlausibleWindow returns the span in which a report's tokens could have been
// heard. When the memo carries the broadcast start it is that start through
// length token intervals later; otherwise it reaches (length+1) intervals
// back from the report time. Both are widened by slack on each side. A
// report with neither time gets an unbounded window.
func PlausibleWindow(r domain.VerifiedReport, interval, slack time.Duration) domain.TimeWindow {
	span := time.Duration(r.Report.Length) * interval
	if from := r.Symptoms.BroadcastFrom; !from.IsZero() {
		return domain.TimeWindow{
			From: from.Add(-slack),
			To:   from.Add(span + slack),
		}
	}
	rt := r.Symptoms.ReportTime
	if rt.IsZero() {
		return domain.TimeWindow{}
	}
	return domain.TimeWindow{
		From: rt.Add(-span - interval - slack),
		To:   rt.Add(slack),
	}
}

// Summarize folds the records that hit tokens inside window into a contact
// summary. ok is false when nothing hit.
func Summarize(records []domain.ObservedTokenRecord, tokens map[domain.Token]uint32, window domain.TimeWindow) (domain.ContactSummary, bool) {
	var s domain.ContactSummary
	var sum float64
	for _, rec := range records {
		if _, hit := tokens[rec.Token]; !hit || !window.Contains(rec.ObservedAt) {
			continue
		}
		if s.Samples == 0 || rec.ObservedAt.Before(s.Start) {
			s.Start = rec.ObservedAt
		}
		if s.Samples == 0 || rec.ObservedAt.After(s.End) {
			s.End = rec.ObservedAt
		}
		if s.Samples == 0 || rec.Distance < s.MinDistance {
			s.MinDistance = rec.Distance
		}
		sum += rec.Distance
		s.Samples++
	}
	if s.Samples == 0 {
		return s, false
	}
	s.AvgDistance = sum / float64(s.Samples)
	return s, true
}
