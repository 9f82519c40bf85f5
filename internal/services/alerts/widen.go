package alerts

import (
	"errors"
	"time"

	"tcncore/internal/domain"
)

// ErrNotFound is returned when no visible alert exists for a report.
var ErrNotFound = errors.New("alert not found")

// Widen merges a later match into prev. The result never covers less than
// prev: the window only grows (up to maxWindow when set), MinDistance only
// drops, and AvgDistance is the sample-weighted mean of both.
func Widen(prev, next domain.Alert, maxWindow time.Duration) domain.Alert {
	out := prev

	start, end := prev.ContactStart, prev.ContactEnd
	if !next.ContactStart.IsZero() && (start.IsZero() || next.ContactStart.Before(start)) {
		start = next.ContactStart
	}
	if next.ContactEnd.After(end) {
		end = next.ContactEnd
	}
	out.ContactStart, out.ContactEnd = clamp(start, end, prev.ContactEnd, maxWindow)
	if out.ContactStart.After(prev.ContactStart) && !prev.ContactStart.IsZero() {
		out.ContactStart = prev.ContactStart
	}

	if next.Samples > 0 {
		if prev.Samples == 0 || next.MinDistance < prev.MinDistance {
			out.MinDistance = next.MinDistance
		}
		total := prev.Samples + next.Samples
		out.AvgDistance = (prev.AvgDistance*float64(prev.Samples) + next.AvgDistance*float64(next.Samples)) / float64(total)
		out.Samples = total
	}
	if !next.Symptoms.ReportTime.IsZero() {
		out.Symptoms = next.Symptoms
	}
	out.ObservedThrough = max(prev.ObservedThrough, next.ObservedThrough)
	return out
}

// clamp bounds [start, end] to maxWindow while keeping anchor, the end of
// any previously reported window, inside the result.
func clamp(start, end, anchor time.Time, maxWindow time.Duration) (time.Time, time.Time) {
	if maxWindow <= 0 || end.Sub(start) <= maxWindow {
		return start, end
	}
	if lo := anchor.Add(-maxWindow); start.Before(lo) {
		start = lo
	}
	if hi := start.Add(maxWindow); end.After(hi) {
		end = hi
	}
	return start, end
}
