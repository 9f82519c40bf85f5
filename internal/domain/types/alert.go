package types

import "time"

// Alert is a local match between observed tokens and a published report.
type Alert struct {
	ID           AlertID     `json:"id"`
	ReportID     ReportID    `json:"report_id"`
	ContactStart time.Time   `json:"contact_start"`
	ContactEnd   time.Time   `json:"contact_end"`
	MinDistance  float64     `json:"min_distance"`
	AvgDistance  float64     `json:"avg_distance"`
	Samples      int         `json:"samples"`
	Symptoms     SymptomMemo `json:"symptoms"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Read         bool        `json:"read"`
	Dismissed    bool        `json:"dismissed"`
	// ObservedThrough is the observation-log sequence already folded in.
	ObservedThrough uint64 `json:"observed_through"`
}

// ContactSummary aggregates the observations that matched one report.
type ContactSummary struct {
	Start       time.Time
	End         time.Time
	MinDistance float64
	AvgDistance float64
	Samples     int
}

// ReportState is the processing state of a report on this device.
type ReportState string

const (
	ReportUnprocessed ReportState = "unprocessed"
	ReportVerified    ReportState = "verified"
	ReportNoMatch     ReportState = "no_match"
	ReportMatched     ReportState = "matched"
)

// Terminal reports whether no further transition is expected.
func (s ReportState) Terminal() bool { return s == ReportNoMatch || s == ReportMatched }

// ReportStatus is the durable per-report marker used for idempotence.
type ReportStatus struct {
	ReportID    ReportID    `json:"report_id"`
	State       ReportState `json:"state"`
	ProcessedAt time.Time   `json:"processed_at"`
	// ObservedThrough is the observation-log sequence matched against.
	ObservedThrough uint64 `json:"observed_through"`
}

// OutcomeKind classifies what ingesting one report did.
type OutcomeKind string

const (
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeNoMatch          OutcomeKind = "no_match"
	OutcomeMatched          OutcomeKind = "matched"
	OutcomeAlreadyProcessed OutcomeKind = "already_processed"
	OutcomeOwnReport        OutcomeKind = "own_report"
)

// Outcome is the per-report result of ingestion.
type Outcome struct {
	ReportID ReportID
	Kind     OutcomeKind
	// Reason is set when Kind is OutcomeRejected.
	Reason VerificationReason
	// Alert is set when Kind is OutcomeMatched.
	Alert *Alert
}

// BatchResult summarises a ProcessNewReports call.
type BatchResult struct {
	Outcomes  []Outcome
	Matched   int
	NoMatch   int
	Rejected  int
	Duplicate int
}
