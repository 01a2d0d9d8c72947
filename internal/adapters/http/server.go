package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/ingest"
	"threatwatch/internal/workers/scanrunner"
)

// Scanner runs one recorded ingestion pass.
type Scanner interface {
	RunInline(ctx context.Context, trigger string) (scanID string, sum ingest.Summary, err error)
}

// Previewer fetches and ranks a batch without storing it.
type Previewer interface {
	Preview(ctx context.Context) (ingest.Preview, error)
}

type Server struct {
	scanner Scanner
	preview Previewer
	runs    ports.RunRepository
	threats ports.Threats
	alerts  ports.Alerts
	log     *slog.Logger

	scanTimeout time.Duration
}

func New(scanner Scanner, preview Previewer, runs ports.RunRepository, threats ports.Threats, alerts ports.Alerts, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		scanner:     scanner,
		preview:     preview,
		runs:        runs,
		threats:     threats,
		alerts:      alerts,
		log:         log,
		scanTimeout: 2 * time.Minute,
	}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", s.getHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/scan", s.postScan)
	// path the browser client already calls
	r.Post("/functions/v1/detect-threats", s.postScan)
	r.Get("/scans", s.listScans)
	r.Get("/scans/{id}", s.getScan)
	r.Get("/preview", s.getPreview)

	r.Get("/threats", s.listThreats)
	r.Get("/threats/*", s.getThreat)
	r.Get("/stats", s.getStats)

	r.Get("/alerts", s.listAlerts)
	r.Patch("/alerts/{id}", s.patchAlert)
	return r
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
	"Access-Control-Allow-Methods": "GET, POST, PATCH, OPTIONS",
}

// cors sets permissive CORS headers on every response and answers any
// preflight with an empty 200.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanResponse struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message"`
	ScanID          string                `json:"scan_id"`
	ThreatsDetected int                   `json:"threats_detected"`
	ThreatCounts    domain.SeverityCounts `json:"threat_counts"`
	Source          string                `json:"source"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.scanTimeout)
	defer cancel()

	id, sum, err := s.scanner.RunInline(ctx, scanrunner.TriggerManual)
	if err != nil {
		s.log.Error("scan failed", "scan_id", id, "err", err)
		// clients treat any non-200 from the scan endpoint as a failed scan
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Success:         true,
		Message:         "Threat detection completed",
		ScanID:          id,
		ThreatsDetected: sum.NewIndicators,
		ThreatCounts:    sum.SeverityCounts,
		Source:          sum.Source,
	})
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "limit", Value: r.URL.Query().Get("limit")})
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.preview.Preview(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listThreats(w http.ResponseWriter, r *http.Request) {
	var severity, kind string
	var limit int
	q := r.URL.Query()
	for name, dest := range map[string]any{"severity": &severity, "kind": &kind, "limit": &limit} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			s.writeError(w, &domain.ValidationError{Field: name, Value: q.Get(name)})
			return
		}
	}
	items, err := s.threats.List(r.Context(), ports.IndicatorFilter{
		Severity: domain.Severity(severity),
		Kind:     domain.Kind(kind),
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// getThreat looks up one indicator. The value may itself contain slashes
// (URL indicators), so it is taken from the wildcard and unescaped.
func (s *Server) getThreat(w http.ResponseWriter, r *http.Request) {
	value, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "indicator", Value: chi.URLParam(r, "*")})
		return
	}
	ind, err := s.threats.Lookup(r.Context(), value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

type statsResponse struct {
	Window       string                `json:"window"`
	Total        int                   `json:"total"`
	ThreatCounts domain.SeverityCounts `json:"threat_counts"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "window", r.URL.Query(), &raw); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "window", Value: r.URL.Query().Get("window")})
		return
	}
	var window time.Duration
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.writeError(w, &domain.ValidationError{Field: "window", Value: raw})
			return
		}
		window = d
	}
	counts, err := s.threats.Counts(r.Context(), window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := statsResponse{Total: counts.Total(), ThreatCounts: counts}
	if window > 0 {
		resp.Window = window.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	var status, severity string
	var limit int
	q := r.URL.Query()
	for name, dest := range map[string]any{"status": &status, "severity": &severity, "limit": &limit} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			s.writeError(w, &domain.ValidationError{Field: name, Value: q.Get(name)})
			return
		}
	}
	filter := ports.AlertFilter{
		Status:   domain.AlertStatus(status),
		Severity: domain.Severity(severity),
		Limit:    limit,
	}
	// status=active means anything not yet resolved
	if status == "active" {
		filter.Status, filter.Active = "", true
	}
	items, err := s.alerts.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type patchAlertRequest struct {
	Status domain.AlertStatus `json:"status"`
}

func (s *Server) patchAlert(w http.ResponseWriter, r *http.Request) {
	var req patchAlertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	a, err := s.alerts.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
