package interfaces

import (
	"context"
	"time"

	domaintypes "tcncore/internal/domain/types"
)

// KeyService owns the device's Report Authorization Keys.
type KeyService interface {
	Current(passphrase string, now time.Time) (domaintypes.ReportAuthorizationKey, error)
	Rotate(passphrase string, now time.Time) (domaintypes.ReportAuthorizationKey, error)
	RotateIfDue(passphrase string, now time.Time) (domaintypes.ReportAuthorizationKey, bool, error)
	AllForVerification(now time.Time) ([]domaintypes.VerificationKey, error)
	NextToken(passphrase string, now time.Time) (domaintypes.Token, uint32, error)
	MarkPublished(id domaintypes.KeyID, end uint32) error
	PruneExpired(now time.Time) (int, error)
}

// ObservationService records sightings reported by the radio layer.
type ObservationService interface {
	Record(token domaintypes.Token, observedAt time.Time, distance float64) (domaintypes.ObservedTokenRecord, error)
	RecordHex(token string, observedAt time.Time, distance float64) (domaintypes.ObservedTokenRecord, error)
	TokensInWindow(window domaintypes.TimeWindow) (map[domaintypes.Token]struct{}, error)
	Prune(now time.Time) (int, error)
}

// ReportingService builds and publishes the device's own reports.
type ReportingService interface {
	BuildAndSubmit(
		ctx context.Context,
		passphrase string,
		symptoms domaintypes.SymptomMemo,
		now time.Time,
	) ([]domaintypes.ReportID, error)
}

// MatchingService tests fetched reports against the observation log.
type MatchingService interface {
	Ingest(ctx context.Context, raw []byte) (domaintypes.Outcome, error)
	ProcessNewReports(ctx context.Context, batch [][]byte) (domaintypes.BatchResult, error)
	Sync(ctx context.Context) (domaintypes.BatchResult, error)
}

// AlertService exposes alerts to the host.
type AlertService interface {
	Upsert(alert domaintypes.Alert) (domaintypes.Alert, error)
	List() ([]domaintypes.Alert, error)
	Delete(id domaintypes.ReportID) error
	MarkRead(id domaintypes.ReportID, read bool) error
}
