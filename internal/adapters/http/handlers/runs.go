package handlers

import (
	"net/http"

	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// RunsHandler handles refinement run API endpoints
type RunsHandler struct {
	refinements ports.RefinementRunner
	defaults    ports.RefinementOptions
}

// NewRunsHandler creates a new refinement runs handler. The defaults fill
// in options the request leaves out.
func NewRunsHandler(refinements ports.RefinementRunner, defaults ports.RefinementOptions) *RunsHandler {
	return &RunsHandler{refinements: refinements, defaults: defaults}
}

// CreateRunRequest represents a request to start a refinement run
type CreateRunRequest struct {
	Prompt               string   `json:"prompt"`
	PromptType           string   `json:"prompt_type,omitempty"` // "general", "creative", "technical", "analytical"
	MaxIterations        *int     `json:"max_iterations,omitempty"`
	ImprovementThreshold *float64 `json:"improvement_threshold,omitempty"`
	Sync                 bool     `json:"sync,omitempty"` // wait for the result instead of streaming progress
}

// RunResponse represents a refinement run in API responses
type RunResponse struct {
	ID             string         `json:"id"`
	PromptType     string         `json:"prompt_type"`
	Status         string         `json:"status"`
	OriginalPrompt string         `json:"original_prompt"`
	BestPrompt     string         `json:"best_prompt"`
	BestScore      float64        `json:"best_score"`
	Rounds         int            `json:"rounds"`
	MaxIterations  int            `json:"max_iterations"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      string         `json:"created_at"`
	CompletedAt    *string        `json:"completed_at,omitempty"`
}

// RunResultResponse represents a synchronous refinement result
type RunResultResponse struct {
	OriginalPrompt  string         `json:"original_prompt"`
	BestPrompt      string         `json:"best_prompt"`
	InitialResponse string         `json:"initial_response,omitempty"`
	FinalResponse   string         `json:"final_response,omitempty"`
	BestScore       float64        `json:"best_score"`
	Rounds          int            `json:"rounds"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// CandidateResponse represents an accepted prompt candidate in API responses
type CandidateResponse struct {
	ID        string  `json:"id"`
	RunID     string  `json:"run_id"`
	Round     int     `json:"round"`
	Prompt    string  `json:"prompt"`
	Response  string  `json:"response"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func runToResponse(run *models.RefinementRun) *RunResponse {
	response := &RunResponse{
		ID:             run.ID,
		PromptType:     run.PromptType,
		Status:         run.Status,
		OriginalPrompt: run.OriginalPrompt,
		BestPrompt:     run.BestPrompt,
		BestScore:      run.BestScore,
		Rounds:         run.Rounds,
		MaxIterations:  run.MaxIterations,
		CreatedAt:      run.CreatedAt.Format(timeLayout),
	}

	if len(run.Meta) > 0 {
		response.Meta = run.Meta
	}

	if run.CompletedAt != nil {
		completedAt := run.CompletedAt.Format(timeLayout)
		response.CompletedAt = &completedAt
	}

	return response
}

var validPromptTypes = map[string]bool{
	"general":    true,
	"creative":   true,
	"technical":  true,
	"analytical": true,
}

// CreateRun handles POST /api/v1/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateRunRequest](r, w)
	if !ok {
		return
	}

	if req.Prompt == "" {
		respondError(w, "validation_error", "Prompt is required", http.StatusBadRequest)
		return
	}

	// Empty prompt type means the task type is detected from the prompt
	if req.PromptType != "" && !validPromptTypes[req.PromptType] {
		respondError(w, "validation_error", "Invalid prompt type", http.StatusBadRequest)
		return
	}

	opts := h.defaults
	opts.PromptType = req.PromptType
	if req.MaxIterations != nil {
		opts.MaxIterations = *req.MaxIterations
	}
	if req.ImprovementThreshold != nil {
		opts.ImprovementThreshold = *req.ImprovementThreshold
	}

	if req.Sync {
		result, err := h.refinements.Refine(r.Context(), req.Prompt, opts)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, &RunResultResponse{
			OriginalPrompt:  result.OriginalPrompt,
			BestPrompt:      result.BestPrompt,
			InitialResponse: result.InitialResponse,
			FinalResponse:   result.FinalResponse,
			BestScore:       result.BestScore,
			Rounds:          result.Rounds,
			Meta:            result.Meta,
		}, http.StatusOK)
		return
	}

	run, err := h.refinements.StartRun(r.Context(), req.Prompt, opts)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, runToResponse(run), http.StatusCreated)
}

// GetRun handles GET /api/v1/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := validateURLParam(r, w, "id", "Run ID")
	if !ok {
		return
	}

	run, err := h.refinements.GetRun(r.Context(), runID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, runToResponse(run), http.StatusOK)
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	runs, err := h.refinements.ListRuns(r.Context(), status, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	responses := make([]*RunResponse, len(runs))
	for i, run := range runs {
		responses[i] = runToResponse(run)
	}

	respondJSON(w, responses, http.StatusOK)
}

// GetCandidates handles GET /api/v1/runs/{id}/candidates
func (h *RunsHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	runID, ok := validateURLParam(r, w, "id", "Run ID")
	if !ok {
		return
	}

	candidates, err := h.refinements.GetCandidates(r.Context(), runID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	responses := make([]CandidateResponse, len(candidates))
	for i, c := range candidates {
		responses[i] = CandidateResponse{
			ID:        c.ID,
			RunID:     c.RunID,
			Round:     c.Round,
			Prompt:    c.Prompt,
			Response:  c.Response,
			Score:     c.Score,
			CreatedAt: c.CreatedAt.Format(timeLayout),
		}
	}

	respondJSON(w, responses, http.StatusOK)
}
