// Package httpapi exposes the optimizer over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/logging"
	"github.com/temirov/drive-optimizer/internal/metrics"
	"github.com/temirov/drive-optimizer/internal/optimize"
	"github.com/temirov/drive-optimizer/internal/plan"
	"github.com/temirov/drive-optimizer/internal/report"
)

const (
	ServiceName    = "drive-optimizer"
	ServiceVersion = "2.0.0"

	optimizePath = "/api/optimize"

	codeInvalidRequest  = "INVALID_REQUEST"
	codeInvalidProposal = "INVALID_PROPOSAL"
	codeProcessingError = "AI_PROCESSING_ERROR"

	statusActive         = "active"
	fallbackModeLocal    = "Local Simulation"
	fallbackModeWorkflow = "Workflow API"

	maximumRequestBytes = 32 << 20

	missingFilesMessage    = "files array is required"
	missingCompareMessage  = "original and proposed arrays are required"
	invalidJSONMessage     = "request body is not valid JSON"
	processingErrorMessage = "failed to optimize the file structure"
)

// Optimizer is satisfied by optimize.Service.
type Optimizer interface {
	Optimize(ctx context.Context, records []drivefile.Record, preferred ...language.Tag) (optimize.Result, error)
	HasWorkflow() bool
}

type Server struct {
	optimizer Optimizer
	planning  plan.Options
	logger    *zap.Logger
	now       func() time.Time
}

func NewServer(optimizer Optimizer, planning plan.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{optimizer: optimizer, planning: planning, logger: logger, now: time.Now}
}

// Handler returns the routed handler wrapped with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET "+optimizePath, s.handleStatus)
	mux.HandleFunc("POST "+optimizePath, s.handleOptimize)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	return logging.Middleware(s.logger)(metrics.Middleware(mux))
}

type errorResponse struct {
	Error       string              `json:"error"`
	Code        string              `json:"code"`
	Details     string              `json:"details,omitempty"`
	Explanation *faults.Explanation `json:"explanation,omitempty"`
}

type statusResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	Timestamp    string `json:"timestamp"`
	Endpoint     string `json:"endpoint"`
	HasAPIKey    bool   `json:"hasApiKey"`
	FallbackMode string `json:"fallbackMode"`
}

type optimizeRequest struct {
	Files json.RawMessage `json:"files"`
}

type compareRequest struct {
	Original json.RawMessage `json:"original"`
	Proposed json.RawMessage `json:"proposed"`
}

type compareResponse struct {
	Comparison report.Comparison `json:"comparison"`
	Plan       plan.Plan         `json:"plan"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": ServiceVersion})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mode := fallbackModeLocal
	if s.optimizer.HasWorkflow() {
		mode = fallbackModeWorkflow
	}
	sendJSON(w, http.StatusOK, statusResponse{
		Status:       statusActive,
		Service:      ServiceName,
		Version:      ServiceVersion,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		Endpoint:     optimizePath,
		HasAPIKey:    s.optimizer.HasWorkflow(),
		FallbackMode: mode,
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	preferred := faults.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	var request optimizeRequest
	if err := decodeBody(w, r, &request); err != nil {
		s.sendInvalid(w, r, codeInvalidRequest, invalidJSONMessage, err, preferred)
		return
	}
	records, err := decodeRecords(request.Files)
	if err != nil {
		s.sendInvalid(w, r, codeInvalidRequest, missingFilesMessage, err, preferred)
		return
	}

	result, err := s.optimizer.Optimize(r.Context(), records, preferred...)
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("optimization failed", zap.Error(err))
		explanation := faults.Explain(err, preferred...)
		status := http.StatusInternalServerError
		if faults.KindOf(err) == faults.KindInvalidInput {
			status = http.StatusBadRequest
		}
		sendJSON(w, status, errorResponse{
			Error:       processingErrorMessage,
			Code:        codeProcessingError,
			Details:     explanation.Message,
			Explanation: &explanation,
		})
		return
	}
	sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	preferred := faults.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	var request compareRequest
	if err := decodeBody(w, r, &request); err != nil {
		s.sendInvalid(w, r, codeInvalidRequest, invalidJSONMessage, err, preferred)
		return
	}
	original, originalErr := decodeRecords(request.Original)
	proposed, proposedErr := decodeRecords(request.Proposed)
	if err := errors.Join(originalErr, proposedErr); err != nil {
		s.sendInvalid(w, r, codeInvalidRequest, missingCompareMessage, err, preferred)
		return
	}

	originalNormalized := drivefile.Flatten(original)
	proposedNormalized := drivefile.Flatten(proposed)
	planning := s.planning
	planning.Logger = logging.WithContext(r.Context(), s.logger)
	operations, err := plan.Diff(originalNormalized, proposedNormalized, planning)
	if err != nil {
		explanation := faults.Explain(err, preferred...)
		sendJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       err.Error(),
			Code:        codeInvalidProposal,
			Explanation: &explanation,
		})
		return
	}
	sendJSON(w, http.StatusOK, compareResponse{
		Comparison: report.Compare(originalNormalized, proposedNormalized),
		Plan:       operations,
	})
}

func (s *Server) sendInvalid(w http.ResponseWriter, r *http.Request, code string, message string, cause error, preferred []language.Tag) {
	logging.WithContext(r.Context(), s.logger).Debug("rejected request", zap.String("code", code), zap.Error(cause))
	explanation := faults.Explain(faults.Wrap(faults.KindInvalidInput, cause, message), preferred...)
	sendJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: code, Explanation: &explanation})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maximumRequestBytes)).Decode(target)
}

// decodeRecords requires a JSON array; null or a missing field is rejected.
func decodeRecords(raw json.RawMessage) ([]drivefile.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, faults.New(faults.KindInvalidInput, missingFilesMessage)
	}
	records := []drivefile.Record{}
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, faults.Wrap(faults.KindInvalidInput, err, missingFilesMessage)
	}
	return records, nil
}

func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
