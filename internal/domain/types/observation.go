package types

// ObservationSnapshot is an immutable, Seq-ordered view of the observation
// log. Later appends are not visible through an existing snapshot.
type ObservationSnapshot struct {
	records []ObservedTokenRecord
}

// NewObservationSnapshot wraps records, which must be sorted by Seq and must
// not be modified afterwards.
func NewObservationSnapshot(records []ObservedTokenRecord) ObservationSnapshot {
	return ObservationSnapshot{records: records[:len(records):len(records)]}
}

// Len returns the number of records in the snapshot.
func (s ObservationSnapshot) Len() int { return len(s.records) }

// Seq returns the highest sequence number in the snapshot, or 0 when empty.
func (s ObservationSnapshot) Seq() uint64 {
	if len(s.records) == 0 {
		return 0
	}
	return s.records[len(s.records)-1].Seq
}

// Records returns every record in Seq order.
func (s ObservationSnapshot) Records() []ObservedTokenRecord { return s.records }

// Since returns the records with Seq strictly greater than seq.
func (s ObservationSnapshot) Since(seq uint64) []ObservedTokenRecord {
	lo, hi := 0, len(s.records)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.records[mid].Seq <= seq {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return s.records[lo:]
}

// Lookup returns every sighting of token inside window.
func (s ObservationSnapshot) Lookup(token Token, window TimeWindow) []ObservedTokenRecord {
	var out []ObservedTokenRecord
	for _, rec := range s.records {
		if rec.Token == token && window.Contains(rec.ObservedAt) {
			out = append(out, rec)
		}
	}
	return out
}

// TokensInWindow returns the distinct tokens observed inside window.
func (s ObservationSnapshot) TokensInWindow(window TimeWindow) map[Token]struct{} {
	out := make(map[Token]struct{})
	for _, rec := range s.records {
		if window.Contains(rec.ObservedAt) {
			out[rec.Token] = struct{}{}
		}
	}
	return out
}
