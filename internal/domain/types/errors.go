package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks bad byte lengths, out-of-range indices and
	// similar input errors. Never retried.
	ErrMalformedInput = errors.New("malformed input")

	// ErrVerificationFailure marks reports that failed verification.
	ErrVerificationFailure = errors.New("report verification failed")

	// ErrStorageFailure marks durable-write or read errors.
	ErrStorageFailure = errors.New("storage failure")

	// ErrAlreadyProcessed marks a re-delivered report. Callers treat it as a
	// successful no-op.
	ErrAlreadyProcessed = errors.New("report already processed")

	// ErrKeyExpired is returned when a RAK past its acceptance window is used
	// to build a new report. Retired keys inside the window still report.
	ErrKeyExpired = errors.New("report authorization key has expired")
)

// VerificationReason classifies why a report was rejected.
type VerificationReason string

const (
	ReasonEmptyRange          VerificationReason = "empty_range"
	ReasonRangeTooLarge       VerificationReason = "range_too_large"
	ReasonRangeOverflow       VerificationReason = "range_overflow"
	ReasonMemoTooLarge        VerificationReason = "memo_too_large"
	ReasonBadSignature        VerificationReason = "bad_signature"
	ReasonUnsupportedMemo     VerificationReason = "unsupported_memo"
	ReasonMalformedMemo       VerificationReason = "malformed_memo"
	ReasonMalformedEncoding   VerificationReason = "malformed_encoding"
	ReasonMalformedDisclosure VerificationReason = "malformed_disclosure"
)

// VerificationError is the typed rejection returned for unverifiable reports.
type VerificationError struct {
	Reason VerificationReason
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("report verification failed: %s", e.Reason)
	}
	return fmt.Sprintf("report verification failed: %s: %s", e.Reason, e.Detail)
}

// Is matches ErrVerificationFailure so callers can test the category.
func (e *VerificationError) Is(target error) bool { return target == ErrVerificationFailure }

// Reject builds a VerificationError.
func Reject(reason VerificationReason, format string, args ...any) *VerificationError {
	return &VerificationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
