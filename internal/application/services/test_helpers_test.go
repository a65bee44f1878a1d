package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// Shared mock implementations for testing

var errNotFound = errors.New("not found")

type mockIDGenerator struct {
	runCounter       int
	candidateCounter int
	sessionCounter   int
	sampleCounter    int
	pairCounter      int
}

func (m *mockIDGenerator) GenerateRunID() string {
	m.runCounter++
	return fmt.Sprintf("rfr_test%d", m.runCounter)
}

func (m *mockIDGenerator) GenerateCandidateID() string {
	m.candidateCounter++
	return fmt.Sprintf("rfc_test%d", m.candidateCounter)
}

func (m *mockIDGenerator) GenerateSessionID() string {
	m.sessionCounter++
	return fmt.Sprintf("rfb_test%d", m.sessionCounter)
}

func (m *mockIDGenerator) GenerateSampleID() string {
	m.sampleCounter++
	return fmt.Sprintf("rfs_test%d", m.sampleCounter)
}

func (m *mockIDGenerator) GeneratePairReportID() string {
	m.pairCounter++
	return fmt.Sprintf("rfp_test%d", m.pairCounter)
}

// stubGenerationClient scripts generation results. The script receives
// the zero-based call index and the request; calls are recorded so tests
// can assert on ordering and content. Safe for concurrent use.
type stubGenerationClient struct {
	mu     sync.Mutex
	calls  []models.GenerationRequest
	script func(call int, req models.GenerationRequest) models.GenerationResult

	probeOK bool
	models  []models.ModelInfo
	loaded  []models.LoadedModel
}

func (c *stubGenerationClient) Generate(_ context.Context, req models.GenerationRequest) models.GenerationResult {
	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, req)
	c.mu.Unlock()
	return c.script(n, req)
}

func (c *stubGenerationClient) Probe(context.Context) bool { return c.probeOK }

func (c *stubGenerationClient) ListModels(context.Context) ([]models.ModelInfo, error) {
	return c.models, nil
}

func (c *stubGenerationClient) LoadedModels(context.Context) ([]models.LoadedModel, error) {
	return c.loaded, nil
}

func (c *stubGenerationClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *stubGenerationClient) call(i int) models.GenerationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

func okResult(response string) models.GenerationResult {
	return models.GenerationResult{
		Success:  true,
		Response: response,
		Latency:  2 * time.Second,
	}
}

func failResult(kind string) models.GenerationResult {
	return models.GenerationFailure(kind, "stubbed failure", time.Second)
}

// stubResourceProbe returns scripted snapshots in order, repeating the
// last one when the script is exhausted.
type stubResourceProbe struct {
	mu        sync.Mutex
	snapshots []ports.ResourceSnapshot
	next      int
}

func (p *stubResourceProbe) Snapshot(context.Context) ports.ResourceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return ports.ResourceSnapshot{}
	}
	if p.next >= len(p.snapshots) {
		return p.snapshots[len(p.snapshots)-1]
	}
	snap := p.snapshots[p.next]
	p.next++
	return snap
}

type mockRefinementRepo struct {
	mu         sync.Mutex
	runs       map[string]*models.RefinementRun
	candidates map[string][]*models.RefinementCandidate
}

func newMockRefinementRepo() *mockRefinementRepo {
	return &mockRefinementRepo{
		runs:       make(map[string]*models.RefinementRun),
		candidates: make(map[string][]*models.RefinementCandidate),
	}
}

func (m *mockRefinementRepo) CreateRun(_ context.Context, run *models.RefinementRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *mockRefinementRepo) GetRun(_ context.Context, id string) (*models.RefinementRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, errNotFound
}

func (m *mockRefinementRepo) UpdateRun(_ context.Context, run *models.RefinementRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *mockRefinementRepo) ListRuns(_ context.Context, status string, limit, offset int) ([]*models.RefinementRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]*models.RefinementRun, 0, len(m.runs))
	for _, run := range m.runs {
		if status == "" || run.Status == status {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (m *mockRefinementRepo) CreateCandidate(_ context.Context, candidate *models.RefinementCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[candidate.RunID] = append(m.candidates[candidate.RunID], candidate)
	return nil
}

func (m *mockRefinementRepo) GetCandidates(_ context.Context, runID string) ([]*models.RefinementCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candidates[runID], nil
}

func (m *mockRefinementRepo) GetBestCandidate(_ context.Context, runID string) (*models.RefinementCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.RefinementCandidate
	for _, c := range m.candidates[runID] {
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	if best == nil {
		return nil, errNotFound
	}
	return best, nil
}

// runStatus reads the current status of a run without racing the
// background goroutine.
func (m *mockRefinementRepo) runStatus(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		return run.Status
	}
	return ""
}

type mockBenchmarkRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.BenchmarkSession
	samples  map[string][]*models.BenchmarkSample
	pairs    map[string][]*models.PairReport
}

func newMockBenchmarkRepo() *mockBenchmarkRepo {
	return &mockBenchmarkRepo{
		sessions: make(map[string]*models.BenchmarkSession),
		samples:  make(map[string][]*models.BenchmarkSample),
		pairs:    make(map[string][]*models.PairReport),
	}
}

func (m *mockBenchmarkRepo) CreateSession(_ context.Context, session *models.BenchmarkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockBenchmarkRepo) GetSession(_ context.Context, id string) (*models.BenchmarkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		return session, nil
	}
	return nil, errNotFound
}

func (m *mockBenchmarkRepo) UpdateSession(_ context.Context, session *models.BenchmarkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return errNotFound
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockBenchmarkRepo) ListSessions(_ context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*models.BenchmarkSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		if status == "" || session.Status == status {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (m *mockBenchmarkRepo) CreateSample(_ context.Context, sample *models.BenchmarkSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[sample.SessionID] = append(m.samples[sample.SessionID], sample)
	return nil
}

func (m *mockBenchmarkRepo) GetSamples(_ context.Context, sessionID string) ([]*models.BenchmarkSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples[sessionID], nil
}

func (m *mockBenchmarkRepo) CreatePairReport(_ context.Context, report *models.PairReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[report.SessionID] = append(m.pairs[report.SessionID], report)
	return nil
}

func (m *mockBenchmarkRepo) GetPairReports(_ context.Context, sessionID string) ([]*models.PairReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[sessionID], nil
}

func (m *mockBenchmarkRepo) sessionStatus(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		return session.Status
	}
	return ""
}

// recordingPublisher captures published events synchronously so tests of
// background runs can assert on them without subscription races.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.RefinementProgressEvent
	closed []string
}

func (p *recordingPublisher) Subscribe(string) <-chan ports.RefinementProgressEvent {
	return make(chan ports.RefinementProgressEvent)
}

func (p *recordingPublisher) Unsubscribe(string, <-chan ports.RefinementProgressEvent) {}

func (p *recordingPublisher) PublishProgress(event ports.RefinementProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Close(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, runID)
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *recordingPublisher) closedRuns() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.closed...)
}

// mockTxManager passes the function through and counts invocations.
type mockTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *mockTxManager) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
