package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"tcncore/internal/domain"
	"tcncore/internal/relay"
	alertsvc "tcncore/internal/services/alerts"
	keysvc "tcncore/internal/services/keys"
	"tcncore/internal/services/matching"
	obssvc "tcncore/internal/services/observation"
	reportsvc "tcncore/internal/services/reporting"
	"tcncore/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config *Config
	Log    *slog.Logger

	Keys         *keysvc.Service
	Observations *obssvc.Service
	Reporting    *reportsvc.Service
	Matching     *matching.Engine
	Alerts       *alertsvc.Service

	Relay domain.ReportTransport
	HTTP  *http.Client

	closers []func() error
}

// NewWire constructs the dependency graph from cfg. The caller must Close
// the result.
func NewWire(cfg *Config, log *slog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}

	w := &Wire{Config: cfg, Log: log}

	// File-based stores
	keyStore := store.NewKeyFileStore(cfg.Home, store.DefaultScryptParams())
	cursors := store.NewSyncStateFileStore(cfg.Home)
	obsLog, err := store.OpenObservationLog(cfg.Home)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, obsLog.Close)
	matches, err := store.OpenMatchStore(cfg.Home)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.closers = append(w.closers, matches.Close)

	// Ensure an HTTP client is available for outbound calls
	w.HTTP = cfg.HTTP
	if w.HTTP == nil {
		w.HTTP = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	w.Relay = relay.NewHTTP(cfg.RelayURL, w.HTTP)

	// High-level services
	w.Keys = keysvc.New(keyStore, keysvc.Policy{
		TokenInterval:     cfg.TokenInterval,
		RotationPeriod:    cfg.RotationPeriod,
		AcceptanceWindow:  cfg.AcceptanceWindow,
		MaxHistoricalKeys: cfg.MaxHistoricalKeys,
	}, log.With("service", "keys"))
	w.Observations = obssvc.New(obsLog, cfg.Retention, cfg.MinRetention(), log.With("service", "observation"))
	w.Alerts = alertsvc.New(matches, cfg.MaxContactWindow, log.With("service", "alerts"))
	w.Reporting = reportsvc.New(w.Keys, w.Relay, reportsvc.Options{
		MaxReportLength: cfg.MaxReportLength,
		ReplayTolerance: cfg.ReplayTolerance,
	}, log.With("service", "reporting"))
	w.Matching = matching.New(matching.Deps{
		Observations: obsLog,
		Matches:      matches,
		Alerts:       w.Alerts,
		OwnKeys:      w.Keys,
		Transport:    w.Relay,
		Cursors:      cursors,
	}, matching.Config{
		TokenInterval:   cfg.TokenInterval,
		TimeSlack:       cfg.TimeSlack,
		MaxReportLength: cfg.MaxReportLength,
		Workers:         cfg.Workers,
		RelayURL:        cfg.RelayURL,
		FetchLimit:      cfg.FetchLimit,
	}, log.With("service", "matching"))

	return w, nil
}

// Close releases open stores.
func (w *Wire) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	w.closers = nil
	return errors.Join(errs...)
}
