package domain

import (
	interfaces "tcncore/internal/domain/interfaces"
	types "tcncore/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	KeyID                  = types.KeyID
	ReportID               = types.ReportID
	AlertID                = types.AlertID
	Seed                   = types.Seed
	Ed25519Public          = types.Ed25519Public
	Ed25519Private         = types.Ed25519Private
	VerificationKey        = types.VerificationKey
	ReportAuthorizationKey = types.ReportAuthorizationKey
	Token                  = types.Token
	ObservedTokenRecord    = types.ObservedTokenRecord
	ObservationSnapshot    = types.ObservationSnapshot
	TimeWindow             = types.TimeWindow
	MemoType               = types.MemoType
	Memo                   = types.Memo
	RatchetNode            = types.RatchetNode
	Report                 = types.Report
	VerifiedReport         = types.VerifiedReport
	SymptomMemo            = types.SymptomMemo
	FeverSeverity          = types.FeverSeverity
	CoughSeverity          = types.CoughSeverity
	Alert                  = types.Alert
	ContactSummary         = types.ContactSummary
	ReportState            = types.ReportState
	ReportStatus           = types.ReportStatus
	OutcomeKind            = types.OutcomeKind
	Outcome                = types.Outcome
	BatchResult            = types.BatchResult
	VerificationReason     = types.VerificationReason
	VerificationError      = types.VerificationError
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyService         = interfaces.KeyService
	ObservationService = interfaces.ObservationService
	ReportingService   = interfaces.ReportingService
	MatchingService    = interfaces.MatchingService
	AlertService       = interfaces.AlertService
	KeyStore           = interfaces.KeyStore
	ObservationLog     = interfaces.ObservationLog
	MatchStore         = interfaces.MatchStore
	SyncStateStore     = interfaces.SyncStateStore
	ReportTransport    = interfaces.ReportTransport
	FetchedReport      = interfaces.FetchedReport
)

// Sentinel errors re-exported for callers that only import domain.
var (
	ErrMalformedInput      = types.ErrMalformedInput
	ErrVerificationFailure = types.ErrVerificationFailure
	ErrStorageFailure      = types.ErrStorageFailure
	ErrAlreadyProcessed    = types.ErrAlreadyProcessed
	ErrKeyExpired          = types.ErrKeyExpired
)

// Constants re-exported from the types subpackage.
const (
	MemoTypeSymptomsV1 = types.MemoTypeSymptomsV1

	FeverNone    = types.FeverNone
	FeverMild    = types.FeverMild
	FeverSerious = types.FeverSerious

	CoughNone     = types.CoughNone
	CoughExisting = types.CoughExisting
	CoughWet      = types.CoughWet
	CoughDry      = types.CoughDry

	ReportUnprocessed = types.ReportUnprocessed
	ReportVerified    = types.ReportVerified
	ReportNoMatch     = types.ReportNoMatch
	ReportMatched     = types.ReportMatched

	OutcomeRejected         = types.OutcomeRejected
	OutcomeNoMatch          = types.OutcomeNoMatch
	OutcomeMatched          = types.OutcomeMatched
	OutcomeAlreadyProcessed = types.OutcomeAlreadyProcessed
	OutcomeOwnReport        = types.OutcomeOwnReport

	ReasonEmptyRange          = types.ReasonEmptyRange
	ReasonRangeTooLarge       = types.ReasonRangeTooLarge
	ReasonRangeOverflow       = types.ReasonRangeOverflow
	ReasonMemoTooLarge        = types.ReasonMemoTooLarge
	ReasonBadSignature        = types.ReasonBadSignature
	ReasonUnsupportedMemo     = types.ReasonUnsupportedMemo
	ReasonMalformedMemo       = types.ReasonMalformedMemo
	ReasonMalformedEncoding   = types.ReasonMalformedEncoding
	ReasonMalformedDisclosure = types.ReasonMalformedDisclosure

	TokenSize = types.TokenSize
	SeedSize  = types.SeedSize
)

// Constructors re-exported from the types subpackage.
var (
	ParseToken             = types.ParseToken
	ParseTokenHex          = types.ParseTokenHex
	NewObservationSnapshot = types.NewObservationSnapshot
	Reject                 = types.Reject
)
