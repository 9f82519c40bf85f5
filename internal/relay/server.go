package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/report"
)

// ServerConfig configures a development relay.
type ServerConfig struct {
	ListenAddr string
	Log        *slog.Logger

	// MaxReportLength is passed to report verification.
	MaxReportLength uint32
	// MaxPage caps the limit parameter of a fetch.
	MaxPage int

	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	GracefulShutdownDuration time.Duration
}

// Server is an in-memory report relay.
type Server struct {
	cfg     ServerConfig
	log     *slog.Logger
	isReady atomic.Bool

	mu      sync.RWMutex
	reports [][]byte
	bySeq   map[domain.ReportID]uint64

	srv *http.Server
}

// NewServer returns a relay that is ready to serve.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 500
	}
	if cfg.GracefulShutdownDuration <= 0 {
		cfg.GracefulShutdownDuration = 5 * time.Second
	}
	s := &Server{
		cfg:   cfg,
		log:   cfg.Log,
		bySeq: make(map[domain.ReportID]uint64),
	}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.isReady.Store(true)
	return s
}

// Handler returns the relay's router.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	mux.With(s.httpLogger).Post("/reports", s.handleSubmit)
	mux.With(s.httpLogger).Get("/reports", s.handleFetch)

	mux.Get("/livez", s.handleLivenessCheck)
	mux.Get("/readyz", s.handleReadinessCheck)
	mux.Get("/drain", s.handleDrain)
	mux.Get("/undrain", s.handleUndrain)
	return mux
}

func (s *Server) httpLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Len returns the number of stored reports.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		writeError(w, http.StatusServiceUnavailable, "draining")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	raw, err := crypto.UnB64(req.Report)
	if err != nil {
		writeError(w, http.StatusBadRequest, "report is not base64")
		return
	}
	v, err := report.DecodeAndVerify(raw, report.VerifyOptions{MaxLength: s.cfg.MaxReportLength})
	if err != nil {
		var ve *domain.VerificationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusUnprocessableEntity, string(ve.Reason))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid report")
		return
	}

	s.mu.Lock()
	seq, dup := s.bySeq[v.ID]
	if !dup {
		s.reports = append(s.reports, raw)
		seq = uint64(len(s.reports))
		s.bySeq[v.ID] = seq
	}
	s.mu.Unlock()

	status := http.StatusCreated
	if dup {
		status = http.StatusOK
	} else {
		s.log.Info("report accepted", "report", v.ID, "seq", seq, "length", v.Report.Length)
	}
	writeJSON(w, status, submitResponse{ID: v.ID, Seq: seq})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	after, err := parseUint(r.URL.Query().Get("after"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad after")
		return
	}
	limit, err := parseUint(r.URL.Query().Get("limit"), uint64(s.cfg.MaxPage))
	if err != nil || limit == 0 {
		writeError(w, http.StatusBadRequest, "bad limit")
		return
	}
	limit = min(limit, uint64(s.cfg.MaxPage))

	s.mu.RLock()
	var out fetchResponse
	out.Reports = []wireReport{}
	// seq is zero-based here; the wire sequence is seq+1.
	n := uint64(len(s.reports))
	for seq := after; seq < n && uint64(len(out.Reports)) < limit; seq++ {
		out.Reports = append(out.Reports, wireReport{Seq: seq + 1, Report: crypto.B64(s.reports[seq])})
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDrain(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	s.log.Info("relay marked as not ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (s *Server) handleUndrain(w http.ResponseWriter, _ *http.Request) {
	if s.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	s.log.Info("relay marked as ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// RunInBackground starts listening on ListenAddr.
func (s *Server) RunInBackground() {
	go func() {
		s.log.Info("starting relay", "listen_address", s.cfg.ListenAddr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("relay failed", "err", err)
		}
	}()
}

// Shutdown stops the server, waiting up to GracefulShutdownDuration for
// in-flight requests.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("graceful relay shutdown failed", "err", err)
		return
	}
	s.log.Info("relay gracefully stopped")
}

func parseUint(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
