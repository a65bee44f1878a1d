package handlers

import (
	"net/http"

	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// BenchmarksHandler handles benchmark session API endpoints
type BenchmarksHandler struct {
	benchmarks ports.BenchmarkRunner
}

// NewBenchmarksHandler creates a new benchmarks handler
func NewBenchmarksHandler(benchmarks ports.BenchmarkRunner) *BenchmarksHandler {
	return &BenchmarksHandler{benchmarks: benchmarks}
}

// SessionResponse represents a benchmark session in API responses
type SessionResponse struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   string         `json:"created_at"`
	CompletedAt *string        `json:"completed_at,omitempty"`
}

// SampleResponse represents one benchmark measurement in API responses
type SampleResponse struct {
	ID             string  `json:"id"`
	SessionID      string  `json:"session_id"`
	Model          string  `json:"model"`
	Category       string  `json:"category,omitempty"`
	ParameterSet   string  `json:"parameter_set,omitempty"`
	Success        bool    `json:"success"`
	LatencyMs      int64   `json:"latency_ms"`
	MemoryDelta    int64   `json:"memory_delta"`
	GPUDelta       float64 `json:"gpu_delta"`
	ResponseLength int     `json:"response_length"`
	Quality        float64 `json:"quality"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// PairReportResponse represents a concurrency probe result in API responses
type PairReportResponse struct {
	ID             string `json:"id"`
	SessionID      string `json:"session_id"`
	Model1         string `json:"model1"`
	Model2         string `json:"model2"`
	Model1Success  bool   `json:"model1_success"`
	Model2Success  bool   `json:"model2_success"`
	Model1Latency  int64  `json:"model1_latency_ms"`
	Model2Latency  int64  `json:"model2_latency_ms"`
	TotalTimeMs    int64  `json:"total_time_ms"`
	OverallSuccess bool   `json:"overall_success"`
	CreatedAt      string `json:"created_at"`
}

// SamplesResponse bundles a session's samples with its pair reports
type SamplesResponse struct {
	Samples     []SampleResponse     `json:"samples"`
	PairReports []PairReportResponse `json:"pair_reports,omitempty"`
}

func sessionToResponse(session *models.BenchmarkSession) *SessionResponse {
	response := &SessionResponse{
		ID:        session.ID,
		Kind:      session.Kind,
		Status:    session.Status,
		Config:    session.Config,
		CreatedAt: session.CreatedAt.Format(timeLayout),
	}

	if session.CompletedAt != nil {
		completedAt := session.CompletedAt.Format(timeLayout)
		response.CompletedAt = &completedAt
	}

	return response
}

// CreateBenchmark handles POST /api/v1/benchmarks
func (h *BenchmarksHandler) CreateBenchmark(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ports.BenchmarkInput](r, w)
	if !ok {
		return
	}

	session, err := h.benchmarks.StartBenchmark(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, sessionToResponse(session), http.StatusCreated)
}

// GetBenchmark handles GET /api/v1/benchmarks/{id}
func (h *BenchmarksHandler) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := validateURLParam(r, w, "id", "Session ID")
	if !ok {
		return
	}

	session, err := h.benchmarks.GetSession(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, sessionToResponse(session), http.StatusOK)
}

// ListBenchmarks handles GET /api/v1/benchmarks
func (h *BenchmarksHandler) ListBenchmarks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	sessions, err := h.benchmarks.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	responses := make([]*SessionResponse, len(sessions))
	for i, session := range sessions {
		responses[i] = sessionToResponse(session)
	}

	respondJSON(w, responses, http.StatusOK)
}

// GetSamples handles GET /api/v1/benchmarks/{id}/samples
func (h *BenchmarksHandler) GetSamples(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := validateURLParam(r, w, "id", "Session ID")
	if !ok {
		return
	}

	samples, err := h.benchmarks.GetSamples(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	reports, err := h.benchmarks.GetPairReports(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := &SamplesResponse{
		Samples: make([]SampleResponse, len(samples)),
	}

	for i, s := range samples {
		response.Samples[i] = SampleResponse{
			ID:             s.ID,
			SessionID:      s.SessionID,
			Model:          s.Model,
			Category:       s.Category,
			ParameterSet:   s.ParameterSet,
			Success:        s.Success,
			LatencyMs:      s.Latency.Milliseconds(),
			MemoryDelta:    s.MemoryDelta,
			GPUDelta:       s.GPUDelta,
			ResponseLength: s.ResponseLength,
			Quality:        s.Quality,
			ErrorKind:      s.ErrorKind,
			CreatedAt:      s.CreatedAt.Format(timeLayout),
		}
	}

	if len(reports) > 0 {
		response.PairReports = make([]PairReportResponse, len(reports))
		for i, p := range reports {
			response.PairReports[i] = PairReportResponse{
				ID:             p.ID,
				SessionID:      p.SessionID,
				Model1:         p.Model1,
				Model2:         p.Model2,
				Model1Success:  p.Model1Success,
				Model2Success:  p.Model2Success,
				Model1Latency:  p.Model1Latency.Milliseconds(),
				Model2Latency:  p.Model2Latency.Milliseconds(),
				TotalTimeMs:    p.TotalTime.Milliseconds(),
				OverallSuccess: p.OverallSuccess,
				CreatedAt:      p.CreatedAt.Format(timeLayout),
			}
		}
	}

	respondJSON(w, response, http.StatusOK)
}
