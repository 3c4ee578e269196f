package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/application"
	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/providers"
	"github.com/sawpanic/viralrisk/internal/tune"
)

const (
	maxBodyBytes = 4 << 20
	maxBatchSize = 1000
	defaultActor = "api"
)

// writeJSON writes JSON response with proper error handling
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details ...string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Details:   details,
		RequestID: RequestID(r.Context()),
		Timestamp: s.now().UTC(),
	})
}

// writeEngineError maps typed engine errors onto status codes
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *risk.ValidationError
		nf   *versions.NotFoundError
		ide  *tune.InsufficientDataError
		up   *providers.UpstreamProviderError
	)

	switch {
	case errors.As(err, &verr):
		s.writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", "configuration is invalid", verr.Problems...)
	case errors.As(err, &nf):
		s.writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &ide):
		s.writeError(w, r, http.StatusConflict, "insufficient_data", err.Error())
	case errors.Is(err, versions.ErrABTestStopped):
		s.writeError(w, r, http.StatusConflict, "ab_test_stopped", err.Error())
	case errors.As(err, &up):
		s.writeError(w, r, http.StatusBadGateway, "upstream_provider", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, r, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decode reads a JSON body, rejecting unknown fields
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_body", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func actor(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultActor
	}
	return name
}

// notFound handles 404 responses
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path))
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  s.now().UTC(),
		Version:    s.config.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	if len(s.guards) > 0 {
		resp.Providers = make(map[string]string, len(s.guards))
		for _, g := range s.guards {
			resp.Providers[g.Name()] = g.State()
			if g.State() != "closed" {
				resp.Status = "degraded"
			}
		}
	}

	cur, err := s.engine.CurrentConfig(r.Context())
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.ConfigVersion = cur.ID
	s.writeJSON(w, http.StatusOK, resp)
}

// predict handles POST /predict
func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req application.PredictRequest
	if !s.decode(w, r, &req) {
		return
	}
	pred, err := s.engine.Predict(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pred)
}

// predictBatch handles POST /predict/batch
func (s *Server) predictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		s.writeError(w, r, http.StatusBadRequest, "invalid_batch", fmt.Sprintf("batch must hold 1 to %d items", maxBatchSize))
		return
	}

	results := s.engine.PredictBatch(r.Context(), req.Items)
	resp := BatchResponse{Results: results}
	for _, res := range results {
		if res.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// analyze handles POST /analyze
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req application.AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	pred, err := s.engine.Analyze(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pred)
}

// getConfig handles GET /config
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cur, err := s.engine.CurrentConfig(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cur)
}

// updateConfig handles PATCH /config
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.engine.UpdateConfig(r.Context(), req.Changes, req.Description, actor(req.Author))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, VersionResponse{VersionID: id, Status: string(versions.StateActive)})
}

// configHistory handles GET /config/history
func (s *Server) configHistory(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ConfigHistory(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Versions: ids})
}

// getVersion handles GET /config/versions/{id}
func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.GetVersion(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// rollback handles POST /config/rollback
func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.VersionID == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing_version", "versionId is required")
		return
	}
	if err := s.engine.RollbackConfig(r.Context(), req.VersionID, actor(req.Author)); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, VersionResponse{VersionID: req.VersionID, Status: "rolled_back"})
}

// listABTests handles GET /abtests
func (s *Server) listABTests(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ListABTests(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ABTestListResponse{Tests: ids})
}

// startABTest handles POST /abtests
func (s *Server) startABTest(w http.ResponseWriter, r *http.Request) {
	var req StartABTestRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.engine.StartABTest(r.Context(), req.ConfigA, req.ConfigB, req.Name, req.TrafficSplit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ABTestCreated{TestID: id})
}

// getABTest handles GET /abtests/{id}
func (s *Server) getABTest(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.ABTestStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// stopABTest handles DELETE /abtests/{id}
func (s *Server) stopABTest(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.StopABTest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// resolveABTest handles GET /abtests/{id}/resolve?subject=
func (s *Server) resolveABTest(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["id"]
	subject := r.URL.Query().Get("subject")

	cfg, arm, err := s.engine.ResolveABTest(r.Context(), testID, subject)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResolveResponse{TestID: testID, SubjectID: subject, Arm: string(arm), Config: cfg})
}

// train handles POST /train
func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if !s.decode(w, r, &req) {
		return
	}

	to := req.To
	if to.IsZero() {
		to = s.now().UTC()
	}
	from := req.From
	if from.IsZero() {
		from = to.Add(-s.config.TrainLookback)
	}
	if to.Before(from) {
		s.writeError(w, r, http.StatusBadRequest, "invalid_range", "to must not be before from")
		return
	}
	minEngagement := s.config.TrainMinEngagement
	if req.MinEngagement != nil {
		minEngagement = *req.MinEngagement
	}

	res, err := s.engine.Train(r.Context(), application.TrainRequest{
		From:            from,
		To:              to,
		MinEngagement:   minEngagement,
		ValidationSplit: req.ValidationSplit,
		Publish:         req.Publish,
		Author:          req.Author,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
