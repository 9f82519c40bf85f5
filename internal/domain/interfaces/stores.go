package interfaces

import (
	"time"

	domaintypes "tcncore/internal/domain/types"
)

// KeyStore persists Report Authorization Keys with their seeds sealed at rest.
type KeyStore interface {
	// StoreKeys writes keys in a single atomic update. Keys already present
	// keep their sealed seed and only have metadata replaced; new keys are
	// sealed under passphrase.
	StoreKeys(passphrase string, keys ...domaintypes.ReportAuthorizationKey) error
	// UnsealKey returns the key with its seed decrypted.
	UnsealKey(passphrase string, id domaintypes.KeyID) (domaintypes.ReportAuthorizationKey, error)
	// ListKeys returns key metadata, oldest first, with seeds left zero.
	ListKeys() ([]domaintypes.ReportAuthorizationKey, error)
	DeleteKeys(ids ...domaintypes.KeyID) error
}

// ObservationLog is the durable append-only record of observed tokens.
type ObservationLog interface {
	// Append persists one sighting and returns it with its assigned Seq.
	Append(token domaintypes.Token, observedAt time.Time, distance float64) (domaintypes.ObservedTokenRecord, error)
	Snapshot() domaintypes.ObservationSnapshot
	// Prune drops records observed before cutoff and reports how many went.
	Prune(cutoff time.Time) (int, error)
}

// MatchStore keeps per-report processing status and the alerts derived from
// matched reports.
type MatchStore interface {
	ReportStatus(id domaintypes.ReportID) (domaintypes.ReportStatus, bool, error)
	// CommitReport durably records status and, when alert is non-nil, the
	// alert for the same report, as one atomic write.
	CommitReport(status domaintypes.ReportStatus, alert *domaintypes.Alert) error
	Alert(id domaintypes.ReportID) (domaintypes.Alert, bool, error)
	ListAlerts() ([]domaintypes.Alert, error)
	// UpdateAlert replaces an existing alert without touching its status.
	UpdateAlert(alert domaintypes.Alert) error
}

// SyncStateStore remembers how far report fetching got per relay.
type SyncStateStore interface {
	SaveCursor(relayURL string, cursor uint64) error
	LoadCursor(relayURL string) (uint64, error)
}
