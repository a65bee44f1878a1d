package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// withURLParam injects a chi URL parameter into the request context.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// Mock RefinementRunner

type mockRefinementRunner struct {
	refineErr     error
	startErr      error
	getErr        error
	listErr       error
	candidatesErr error

	result     *models.RefinementResult
	run        *models.RefinementRun
	runs       []*models.RefinementRun
	candidates []*models.RefinementCandidate

	lastPrompt string
	lastOpts   ports.RefinementOptions
}

func (m *mockRefinementRunner) Refine(ctx context.Context, prompt string, opts ports.RefinementOptions) (*models.RefinementResult, error) {
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.refineErr != nil {
		return nil, m.refineErr
	}
	return m.result, nil
}

func (m *mockRefinementRunner) StartRun(ctx context.Context, prompt string, opts ports.RefinementOptions) (*models.RefinementRun, error) {
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.run, nil
}

func (m *mockRefinementRunner) GetRun(ctx context.Context, runID string) (*models.RefinementRun, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.run, nil
}

func (m *mockRefinementRunner) ListRuns(ctx context.Context, status string, limit, offset int) ([]*models.RefinementRun, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.runs, nil
}

func (m *mockRefinementRunner) GetCandidates(ctx context.Context, runID string) ([]*models.RefinementCandidate, error) {
	if m.candidatesErr != nil {
		return nil, m.candidatesErr
	}
	return m.candidates, nil
}

// Mock BenchmarkRunner

type mockBenchmarkRunner struct {
	startErr   error
	getErr     error
	listErr    error
	samplesErr error
	reportsErr error

	session  *models.BenchmarkSession
	sessions []*models.BenchmarkSession
	samples  []*models.BenchmarkSample
	reports  []*models.PairReport

	lastInput *ports.BenchmarkInput
}

func (m *mockBenchmarkRunner) StartBenchmark(ctx context.Context, input *ports.BenchmarkInput) (*models.BenchmarkSession, error) {
	m.lastInput = input
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.session, nil
}

func (m *mockBenchmarkRunner) GetSession(ctx context.Context, sessionID string) (*models.BenchmarkSession, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.session, nil
}

func (m *mockBenchmarkRunner) ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sessions, nil
}

func (m *mockBenchmarkRunner) GetSamples(ctx context.Context, sessionID string) ([]*models.BenchmarkSample, error) {
	if m.samplesErr != nil {
		return nil, m.samplesErr
	}
	return m.samples, nil
}

func (m *mockBenchmarkRunner) GetPairReports(ctx context.Context, sessionID string) ([]*models.PairReport, error) {
	if m.reportsErr != nil {
		return nil, m.reportsErr
	}
	return m.reports, nil
}

// Mock GenerationClient

type mockGenerationClient struct {
	probeDown bool
	listErr   error
	loadedErr error

	models []models.ModelInfo
	loaded []models.LoadedModel
}

func (m *mockGenerationClient) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	return models.GenerationResult{Success: true, Response: "ok"}
}

func (m *mockGenerationClient) Probe(ctx context.Context) bool {
	return !m.probeDown
}

func (m *mockGenerationClient) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.models, nil
}

func (m *mockGenerationClient) LoadedModels(ctx context.Context) ([]models.LoadedModel, error) {
	if m.loadedErr != nil {
		return nil, m.loadedErr
	}
	return m.loaded, nil
}
