package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

func testDefaults() ports.RefinementOptions {
	return ports.RefinementOptions{
		MaxIterations:        3,
		ImprovementThreshold: 0.15,
	}
}

func TestRunsHandler_CreateRun_Async(t *testing.T) {
	run := models.NewRefinementRun("rfr_test1", "Write a haiku", "creative", 3)
	mockService := &mockRefinementRunner{run: run}
	handler := NewRunsHandler(mockService, testDefaults())

	body := `{"prompt": "Write a haiku", "prompt_type": "creative"}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	var response RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.ID != "rfr_test1" {
		t.Errorf("expected id 'rfr_test1', got %q", response.ID)
	}
	if response.Status != models.RefinementStatusRunning {
		t.Errorf("expected running status, got %q", response.Status)
	}
	if response.OriginalPrompt != "Write a haiku" {
		t.Errorf("unexpected original prompt %q", response.OriginalPrompt)
	}

	if mockService.lastOpts.MaxIterations != 3 {
		t.Errorf("expected default max iterations 3, got %d", mockService.lastOpts.MaxIterations)
	}
	if mockService.lastOpts.ImprovementThreshold != 0.15 {
		t.Errorf("expected default threshold 0.15, got %v", mockService.lastOpts.ImprovementThreshold)
	}
	if mockService.lastOpts.PromptType != "creative" {
		t.Errorf("expected prompt type 'creative', got %q", mockService.lastOpts.PromptType)
	}
}

func TestRunsHandler_CreateRun_OverridesDefaults(t *testing.T) {
	run := models.NewRefinementRun("rfr_test2", "prompt", "general", 5)
	mockService := &mockRefinementRunner{run: run}
	handler := NewRunsHandler(mockService, testDefaults())

	body := `{"prompt": "prompt", "max_iterations": 5, "improvement_threshold": 0.3}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if mockService.lastOpts.MaxIterations != 5 {
		t.Errorf("expected max iterations 5, got %d", mockService.lastOpts.MaxIterations)
	}
	if mockService.lastOpts.ImprovementThreshold != 0.3 {
		t.Errorf("expected threshold 0.3, got %v", mockService.lastOpts.ImprovementThreshold)
	}
}

func TestRunsHandler_CreateRun_ZeroIterationsIsExplicit(t *testing.T) {
	run := models.NewRefinementRun("rfr_test3", "prompt", "general", 0)
	mockService := &mockRefinementRunner{run: run}
	handler := NewRunsHandler(mockService, testDefaults())

	body := `{"prompt": "prompt", "max_iterations": 0}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	// An explicit zero must not be replaced by the default
	if mockService.lastOpts.MaxIterations != 0 {
		t.Errorf("expected max iterations 0, got %d", mockService.lastOpts.MaxIterations)
	}
}

func TestRunsHandler_CreateRun_Sync(t *testing.T) {
	result := &models.RefinementResult{
		OriginalPrompt: "original",
		BestPrompt:     "better",
		BestScore:      0.82,
		Rounds:         2,
		Meta:           map[string]any{"stop_reason": "no_improvement"},
	}
	mockService := &mockRefinementRunner{result: result}
	handler := NewRunsHandler(mockService, testDefaults())

	body := `{"prompt": "original", "sync": true}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response RunResultResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.BestPrompt != "better" {
		t.Errorf("expected best prompt 'better', got %q", response.BestPrompt)
	}
	if response.Rounds != 2 {
		t.Errorf("expected 2 rounds, got %d", response.Rounds)
	}
	if response.Meta["stop_reason"] != "no_improvement" {
		t.Errorf("expected stop_reason in meta, got %v", response.Meta)
	}
}

func TestRunsHandler_CreateRun_MissingPrompt(t *testing.T) {
	handler := NewRunsHandler(&mockRefinementRunner{}, testDefaults())

	body := `{"prompt_type": "general"}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRunsHandler_CreateRun_InvalidPromptType(t *testing.T) {
	handler := NewRunsHandler(&mockRefinementRunner{}, testDefaults())

	body := `{"prompt": "test", "prompt_type": "poetry"}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRunsHandler_CreateRun_InvalidBody(t *testing.T) {
	handler := NewRunsHandler(&mockRefinementRunner{}, testDefaults())

	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRunsHandler_CreateRun_ServiceError(t *testing.T) {
	mockService := &mockRefinementRunner{startErr: errors.New("service error")}
	handler := NewRunsHandler(mockService, testDefaults())

	body := `{"prompt": "test"}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.CreateRun(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

func TestRunsHandler_GetRun_Success(t *testing.T) {
	run := models.NewRefinementRun("rfr_test1", "prompt", "general", 3)
	result := &models.RefinementResult{
		OriginalPrompt: "prompt",
		BestPrompt:     "refined prompt",
		BestScore:      0.9,
		Rounds:         1,
	}
	run.MarkCompleted(result)

	mockService := &mockRefinementRunner{run: run}
	handler := NewRunsHandler(mockService, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs/rfr_test1", nil)
	req = withURLParam(req, "id", "rfr_test1")

	rr := httptest.NewRecorder()
	handler.GetRun(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != models.RefinementStatusCompleted {
		t.Errorf("expected completed status, got %q", response.Status)
	}
	if response.BestPrompt != "refined prompt" {
		t.Errorf("expected best prompt 'refined prompt', got %q", response.BestPrompt)
	}
	if response.BestScore != 0.9 {
		t.Errorf("expected best score 0.9, got %v", response.BestScore)
	}
	if response.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestRunsHandler_GetRun_NotFound(t *testing.T) {
	mockService := &mockRefinementRunner{
		getErr: domain.NewDomainError(domain.ErrRunNotFound, "failed to get refinement run"),
	}
	handler := NewRunsHandler(mockService, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs/nonexistent", nil)
	req = withURLParam(req, "id", "nonexistent")

	rr := httptest.NewRecorder()
	handler.GetRun(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestRunsHandler_GetRun_MissingID(t *testing.T) {
	handler := NewRunsHandler(&mockRefinementRunner{}, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs/", nil)
	req = withURLParam(req, "id", "")

	rr := httptest.NewRecorder()
	handler.GetRun(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRunsHandler_ListRuns(t *testing.T) {
	runs := []*models.RefinementRun{
		models.NewRefinementRun("rfr_1", "first", "general", 3),
		models.NewRefinementRun("rfr_2", "second", "technical", 3),
	}
	mockService := &mockRefinementRunner{runs: runs}
	handler := NewRunsHandler(mockService, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs?limit=10", nil)

	rr := httptest.NewRecorder()
	handler.ListRuns(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var responses []*RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&responses); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(responses) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(responses))
	}
	if responses[0].ID != "rfr_1" || responses[1].ID != "rfr_2" {
		t.Errorf("unexpected run ids %q, %q", responses[0].ID, responses[1].ID)
	}
}

func TestRunsHandler_ListRuns_NoPersistence(t *testing.T) {
	mockService := &mockRefinementRunner{
		listErr: domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured"),
	}
	handler := NewRunsHandler(mockService, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs", nil)

	rr := httptest.NewRecorder()
	handler.ListRuns(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestRunsHandler_GetCandidates(t *testing.T) {
	now := time.Now().UTC()
	candidates := []*models.RefinementCandidate{
		{ID: "rfc_1", RunID: "rfr_1", Round: 1, Prompt: "better", Response: "answer", Score: 0.7, CreatedAt: now},
		{ID: "rfc_2", RunID: "rfr_1", Round: 2, Prompt: "best", Response: "answer 2", Score: 0.9, CreatedAt: now},
	}
	mockService := &mockRefinementRunner{candidates: candidates}
	handler := NewRunsHandler(mockService, testDefaults())

	req := httptest.NewRequest("GET", "/api/v1/runs/rfr_1/candidates", nil)
	req = withURLParam(req, "id", "rfr_1")

	rr := httptest.NewRecorder()
	handler.GetCandidates(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var responses []CandidateResponse
	if err := json.NewDecoder(rr.Body).Decode(&responses); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(responses) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(responses))
	}
	if responses[1].Score != 0.9 {
		t.Errorf("expected score 0.9, got %v", responses[1].Score)
	}
	if responses[0].Round != 1 {
		t.Errorf("expected round 1, got %d", responses[0].Round)
	}
}
