package types

import "time"

// MemoType tags the encoding of a report's payload.
type MemoType uint8

const (
	// MemoTypeSymptomsV1 carries a bit-packed SymptomMemo.
	MemoTypeSymptomsV1 MemoType = 1
)

// Memo is the opaque payload attached to a report.
type Memo struct {
	Type MemoType `json:"type"`
	Data []byte   `json:"data"`
}

// RatchetNode is one disclosed node of the ratchet tree.
//
// A node at Height h with Prefix p is the root of the subtree covering
// indices [p<<h, (p+1)<<h).
type RatchetNode struct {
	Height uint8    `json:"height"`
	Prefix uint32   `json:"prefix"`
	Value  [32]byte `json:"value"`
}

// First returns the first index the node covers.
func (n RatchetNode) First() uint64 { return uint64(n.Prefix) << n.Height }

// Span returns the number of indices the node covers.
func (n RatchetNode) Span() uint64 { return uint64(1) << n.Height }

// Report is a signed disclosure of a token-index range plus a memo.
type Report struct {
	VerificationKey VerificationKey `json:"verification_key"`
	Start           uint32          `json:"start"`
	Length          uint32          `json:"length"`
	Disclosure      []RatchetNode   `json:"disclosure"`
	Memo            Memo            `json:"memo"`
	Signature       []byte          `json:"signature"`
}

// End returns the exclusive end index of the report range.
func (r Report) End() uint64 { return uint64(r.Start) + uint64(r.Length) }

// VerifiedReport is a report that passed every verification check.
type VerifiedReport struct {
	ID       ReportID
	Report   Report
	Symptoms SymptomMemo
}

// FeverSeverity grades reported fever.
type FeverSeverity uint8

const (
	FeverNone FeverSeverity = iota
	FeverMild
	FeverSerious
)

// CoughSeverity grades reported cough.
type CoughSeverity uint8

const (
	CoughNone CoughSeverity = iota
	CoughExisting
	CoughWet
	CoughDry
)

// SymptomMemo is the decoded symptom payload of a report.
type SymptomMemo struct {
	Version             uint8         `json:"version"`
	ReportTime          time.Time     `json:"report_time"`
	EarliestSymptomTime *time.Time    `json:"earliest_symptom_time,omitempty"`
	// BroadcastFrom is when the first disclosed token went on air. Zero when
	// the reporter did not say.
	BroadcastFrom    time.Time     `json:"broadcast_from,omitempty"`
	Fever            FeverSeverity `json:"fever"`
	Cough            CoughSeverity `json:"cough"`
	Breathlessness   bool          `json:"breathlessness"`
	MuscleAches      bool          `json:"muscle_aches"`
	LossSmellOrTaste bool          `json:"loss_smell_or_taste"`
	Diarrhea         bool          `json:"diarrhea"`
	RunnyNose        bool          `json:"runny_nose"`
	Other            bool          `json:"other"`
	NoSymptoms       bool          `json:"no_symptoms"`
}

// HasSymptoms reports whether the memo is worth publishing.
func (m SymptomMemo) HasSymptoms() bool {
	return m.Fever != FeverNone || m.Cough != CoughNone || m.Breathlessness ||
		m.MuscleAches || m.LossSmellOrTaste || m.Diarrhea || m.RunnyNose || m.Other
}
