package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	healthuc "github.com/kailas-cloud/painradar/internal/usecase/health"
	runuc "github.com/kailas-cloud/painradar/internal/usecase/run"
)

// maxRequestBody bounds run request bodies.
const maxRequestBody = 64 << 10

// ErrorCode is the machine-readable error class of an API error.
type ErrorCode string

const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnknownSource    ErrorCode = "unknown_source"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RunRequest is the body of POST /api/v1/runs and /api/v1/runs/stream.
type RunRequest struct {
	Query      string         `json:"query"`
	Sources    []string       `json:"sources,omitempty"`
	Limits     map[string]int `json:"limits,omitempty"`
	TimeFilter string         `json:"time_filter,omitempty"`
}

// SourcesResponse is the body of GET /api/v1/sources.
type SourcesResponse struct {
	Items []runuc.SourceInfo `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the run API.
type Server struct {
	runs          *runuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(runs *runuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		runs:   runs,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidOptions, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnknownSource, http.StatusBadRequest, ErrorCodeUnknownSource),
	}
	return s
}

// CreateRun handles POST /api/v1/runs. The run executes synchronously; a
// FAILED run is still a 200 with the failure described in the report.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	report, err := s.runs.Run(r.Context(), req.Query, opts, nil)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Run-ID", report.RunID)
	writeJSON(w, http.StatusOK, report)
}

// StreamRun handles POST /api/v1/runs/stream as Server-Sent Events:
// "progress" events while the run advances, then one "report" event.
func (s *Server) StreamRun(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	events, result, err := s.runs.Stream(r.Context(), req.Query, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sse := newSSEWriter(w)
	for ev := range events {
		// keep draining after a write error so the run can finish
		if err := sse.send("progress", ev); err != nil {
			logpkg.FromContext(r.Context()).Debug("progress event not delivered", zap.Error(err))
		}
	}
	report := <-result
	if err := sse.send("report", report); err != nil {
		logpkg.FromContext(r.Context()).Warn("report event not delivered",
			zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// ListSources handles GET /api/v1/sources.
func (s *Server) ListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SourcesResponse{Items: s.runs.Sources()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (RunRequest, domain.RunOptions, bool) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return RunRequest{}, domain.RunOptions{}, false
	}

	opts, err := domain.ParseRunOptions(req.Sources, req.Limits, req.TimeFilter)
	if err != nil {
		s.handleDomainError(w, r, err)
		return RunRequest{}, domain.RunOptions{}, false
	}
	return req, opts, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation errors are
// built from request input only, so their text is returned as is.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidOptions,
		domain.ErrUnknownSource,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger
	if id := middleware.GetReqID(r.Context()); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
