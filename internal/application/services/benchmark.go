package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/longregen/refinery/internal/adapters/metrics"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/internal/scoring"
)

// DefaultCategories returns the built-in category battery: five prompt
// categories with three prompts each. Suites may override it.
func DefaultCategories() []ports.PromptCategory {
	return []ports.PromptCategory{
		{Name: "creative", Prompts: []string{
			"Write a short story about a robot learning to paint.",
			"Create a poem about the ocean at sunset.",
			"Describe a futuristic city in vivid detail.",
		}},
		{Name: "technical", Prompts: []string{
			"Explain how machine learning works in simple terms.",
			"What are the key principles of software architecture?",
			"Describe the process of database normalization.",
		}},
		{Name: "analytical", Prompts: []string{
			"Compare the advantages and disadvantages of renewable energy.",
			"Analyze the impact of social media on modern communication.",
			"What are the main factors affecting climate change?",
		}},
		{Name: "instruction", Prompts: []string{
			"Provide step-by-step instructions for making coffee.",
			"How do you troubleshoot a computer that won't start?",
			"Explain how to solve a quadratic equation.",
		}},
		{Name: "conversational", Prompts: []string{
			"What's your opinion on the future of artificial intelligence?",
			"How would you explain quantum physics to a child?",
			"What advice would you give to someone starting their career?",
		}},
	}
}

// DefaultParameterSets returns the built-in sweep sets.
func DefaultParameterSets() []ports.ParameterSet {
	return []ports.ParameterSet{
		{Name: "conservative", Temperature: 0.3, TopP: 0.8},
		{Name: "balanced", Temperature: 0.7, TopP: 0.9},
		{Name: "creative", Temperature: 1.0, TopP: 0.95},
		{Name: "deterministic", Temperature: 0.1, TopP: 0.5},
	}
}

// BenchmarkConfig configures the benchmark harness.
type BenchmarkConfig struct {
	// WarmupPrompt is the fixed prompt used for sequential profiling.
	WarmupPrompt string

	// PairPrompt1/PairPrompt2 are the prompts sent concurrently during
	// pair profiling, one per model.
	PairPrompt1 string
	PairPrompt2 string

	// SweepPrompt is the fixed prompt repeated across parameter sets.
	SweepPrompt string

	// DefaultParameters are sent with every call that has no sweep set.
	DefaultParameters map[string]any

	// Timeout bounds each sequential call; PairTimeout each concurrent one.
	Timeout     time.Duration
	PairTimeout time.Duration

	// Cool-down delays between client calls, to avoid resource
	// contention bias between measurements.
	ModelCooldown  time.Duration
	PromptCooldown time.Duration
	PairCooldown   time.Duration

	// RunsPerSet is how often each parameter set is exercised.
	RunsPerSet int

	// MaxConcurrent bounds concurrent generation calls service-wide.
	MaxConcurrent int64

	// VRAMBudgetMiB caps the combined VRAM for recommended pairs.
	VRAMBudgetMiB float64
}

// DefaultBenchmarkConfig returns the defaults the original measurement
// battery used.
func DefaultBenchmarkConfig() BenchmarkConfig {
	return BenchmarkConfig{
		WarmupPrompt:      "Hello, how are you today?",
		PairPrompt1:       "What is AI?",
		PairPrompt2:       "Explain machine learning briefly.",
		SweepPrompt:       "Explain the concept of machine learning and provide a practical example.",
		DefaultParameters: map[string]any{"temperature": 0.7, "top_p": 0.9},
		Timeout:           120 * time.Second,
		PairTimeout:       60 * time.Second,
		ModelCooldown:     2 * time.Second,
		PromptCooldown:    1 * time.Second,
		PairCooldown:      5 * time.Second,
		RunsPerSet:        3,
		MaxConcurrent:     2,
		VRAMBudgetMiB:     7500,
	}
}

// CategoryRun holds the samples and summary of one category of the battery.
type CategoryRun struct {
	Category string                   `json:"category"`
	Samples  []models.BenchmarkSample `json:"samples"`
	Summary  models.BenchmarkSummary  `json:"summary"`
}

// SweepRun holds the samples and summary of one parameter set.
type SweepRun struct {
	Set     ports.ParameterSet       `json:"set"`
	Samples []models.BenchmarkSample `json:"samples"`
	Summary models.BenchmarkSummary  `json:"summary"`
}

// BenchmarkService profiles models against the generation service:
// sequentially with resource deltas, concurrently in pairs, across a
// category battery, and across parameter sweeps. Generation failures are
// recorded per sample and never abort a run.
type BenchmarkService struct {
	repo    ports.BenchmarkRepository // optional; nil disables persistence
	tx      ports.TransactionManager  // optional; nil means non-transactional writes
	client  ports.GenerationClient
	probe   ports.ResourceProbe
	ids     ports.IDGenerator
	config  BenchmarkConfig
	quality *scoring.QualityEvaluator

	// sem bounds concurrent generation calls across all sessions.
	sem *semaphore.Weighted
}

// Compile-time interface check
var _ ports.BenchmarkRunner = (*BenchmarkService)(nil)

// NewBenchmarkService creates a new benchmark service.
func NewBenchmarkService(
	client ports.GenerationClient,
	probe ports.ResourceProbe,
	idGenerator ports.IDGenerator,
	config BenchmarkConfig,
) *BenchmarkService {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &BenchmarkService{
		client:  client,
		probe:   probe,
		ids:     idGenerator,
		config:  config,
		quality: scoring.NewQualityEvaluator(),
		sem:     semaphore.NewWeighted(maxConcurrent),
	}
}

// WithRepository enables persistence of sessions, samples and pair reports.
func (s *BenchmarkService) WithRepository(repo ports.BenchmarkRepository) *BenchmarkService {
	s.repo = repo
	return s
}

// WithTransactionManager makes session results land atomically: the final
// session row, its samples and its pair reports are written in one
// transaction, so a completed session is never visible with partial data.
func (s *BenchmarkService) WithTransactionManager(tx ports.TransactionManager) *BenchmarkService {
	s.tx = tx
	return s
}

// ProfileModels benchmarks each model sequentially with one warm-up
// prompt, recording latency and memory deltas around the call. A fixed
// cool-down separates models.
func (s *BenchmarkService) ProfileModels(ctx context.Context, modelNames []string) ([]models.BenchmarkSample, error) {
	if len(modelNames) == 0 {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "no models to profile")
	}

	samples := make([]models.BenchmarkSample, 0, len(modelNames))
	for i, model := range modelNames {
		if i > 0 {
			coolDown(ctx, s.config.ModelCooldown)
		}

		before := s.probe.Snapshot(ctx)
		result := s.generate(ctx, model, s.config.WarmupPrompt, s.config.DefaultParameters, s.config.Timeout)
		after := s.probe.Snapshot(ctx)

		sample := s.newSample(model, result)
		sample.MemoryDelta = after.SystemUsed - before.SystemUsed
		sample.GPUDelta = after.GPUUsedMiB - before.GPUUsedMiB
		samples = append(samples, sample)
	}
	return samples, nil
}

// ProfilePair runs both models truly concurrently: both calls are in
// flight at the same time, each under its own timeout, and both are
// always awaited. A failure on one never cancels the other.
func (s *BenchmarkService) ProfilePair(ctx context.Context, model1, model2 string) (*models.PairReport, error) {
	if model1 == "" || model2 == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "pair profiling needs two model names")
	}

	var results [2]models.GenerationResult
	calls := [2]struct {
		model  string
		prompt string
	}{
		{model1, s.config.PairPrompt1},
		{model2, s.config.PairPrompt2},
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.generate(ctx, calls[i].model, calls[i].prompt, s.config.DefaultParameters, s.config.PairTimeout)
		}(i)
	}
	wg.Wait()
	totalTime := time.Since(start)

	return &models.PairReport{
		ID:             s.ids.GeneratePairReportID(),
		Model1:         model1,
		Model2:         model2,
		Model1Success:  results[0].Success,
		Model2Success:  results[1].Success,
		Model1Latency:  results[0].Latency,
		Model2Latency:  results[1].Latency,
		TotalTime:      totalTime,
		OverallSuccess: results[0].Success && results[1].Success,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ProfilePairs profiles several pairs back to back with a cool-down
// between them.
func (s *BenchmarkService) ProfilePairs(ctx context.Context, pairs [][2]string) ([]*models.PairReport, error) {
	if len(pairs) == 0 {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "no pairs to profile")
	}

	reports := make([]*models.PairReport, 0, len(pairs))
	for i, pair := range pairs {
		if i > 0 {
			coolDown(ctx, s.config.PairCooldown)
		}
		report, err := s.ProfilePair(ctx, pair[0], pair[1])
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunCategories runs the category battery against one model, with a brief
// pause after each prompt, and summarizes each category over its
// successful samples.
func (s *BenchmarkService) RunCategories(ctx context.Context, model string, categories []ports.PromptCategory) ([]CategoryRun, error) {
	if model == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "model cannot be empty")
	}
	if len(categories) == 0 {
		categories = DefaultCategories()
	}

	runs := make([]CategoryRun, 0, len(categories))
	for _, category := range categories {
		samples := make([]models.BenchmarkSample, 0, len(category.Prompts))
		for _, prompt := range category.Prompts {
			result := s.generate(ctx, model, prompt, s.config.DefaultParameters, s.config.Timeout)

			sample := s.newSample(model, result)
			sample.Category = category.Name
			if result.Success {
				sample.Quality = s.quality.Evaluate(prompt, result.Response).Quality
			}
			samples = append(samples, sample)

			coolDown(ctx, s.config.PromptCooldown)
		}

		runs = append(runs, CategoryRun{
			Category: category.Name,
			Samples:  samples,
			Summary:  models.Summarize(model, category.Name, samples),
		})
	}
	return runs, nil
}

// SweepParameters exercises each parameter set runsPerSet times against
// one fixed prompt and summarizes per set.
func (s *BenchmarkService) SweepParameters(ctx context.Context, model string, sets []ports.ParameterSet, runsPerSet int) ([]SweepRun, error) {
	if model == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "model cannot be empty")
	}
	if len(sets) == 0 {
		sets = DefaultParameterSets()
	}
	if runsPerSet <= 0 {
		runsPerSet = s.config.RunsPerSet
	}

	runs := make([]SweepRun, 0, len(sets))
	for _, set := range sets {
		params := map[string]any{"temperature": set.Temperature, "top_p": set.TopP}

		samples := make([]models.BenchmarkSample, 0, runsPerSet)
		for i := 0; i < runsPerSet; i++ {
			result := s.generate(ctx, model, s.config.SweepPrompt, params, s.config.Timeout)

			sample := s.newSample(model, result)
			sample.ParameterSet = set.Name
			if result.Success {
				sample.Quality = s.quality.Evaluate(s.config.SweepPrompt, result.Response).Quality
			}
			samples = append(samples, sample)

			coolDown(ctx, s.config.PromptCooldown)
		}

		summary := models.Summarize(model, "", samples)
		summary.ParameterSet = set.Name
		runs = append(runs, SweepRun{Set: set, Samples: samples, Summary: summary})
	}
	return runs, nil
}

// RecommendPair picks an executor/optimizer pair from pair reports: both
// calls must have succeeded and the combined VRAM residency of the two
// models must fit the budget. Among the qualifying pairs the one with the
// lowest joint wall clock wins. Models missing from the loaded list count
// as zero VRAM.
func RecommendPair(reports []*models.PairReport, loaded []models.LoadedModel, budgetMiB float64) (*models.PairReport, bool) {
	vram := make(map[string]float64, len(loaded))
	for _, m := range loaded {
		vram[m.Name] = float64(m.SizeVRAM) / (1024 * 1024)
	}

	var best *models.PairReport
	for _, report := range reports {
		if report == nil || !report.OverallSuccess {
			continue
		}
		if budgetMiB > 0 && vram[report.Model1]+vram[report.Model2] > budgetMiB {
			continue
		}
		if best == nil || report.TotalTime < best.TotalTime {
			best = report
		}
	}
	return best, best != nil
}

// StartBenchmark validates the input, records the session, and runs it in
// the background.
func (s *BenchmarkService) StartBenchmark(ctx context.Context, input *ports.BenchmarkInput) (*models.BenchmarkSession, error) {
	if input == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "benchmark input cannot be nil")
	}

	switch input.Kind {
	case models.BenchmarkKindModels:
		if len(input.Models) == 0 {
			return nil, domain.NewDomainError(domain.ErrEmptyContent, "models benchmark needs at least one model")
		}
	case models.BenchmarkKindPair:
		if input.Model1 == "" || input.Model2 == "" {
			return nil, domain.NewDomainError(domain.ErrEmptyContent, "pair benchmark needs model1 and model2")
		}
	case models.BenchmarkKindCategories, models.BenchmarkKindSweep:
		if input.Model == "" {
			return nil, domain.NewDomainError(domain.ErrEmptyContent, "benchmark needs a model")
		}
	default:
		return nil, domain.NewDomainError(domain.ErrInvalidInput, fmt.Sprintf("unknown benchmark kind %q", input.Kind))
	}

	session := models.NewBenchmarkSession(s.ids.GenerateSessionID(), input.Kind)
	session.Config = sessionConfig(input)

	if s.repo != nil {
		if err := s.repo.CreateSession(ctx, session); err != nil {
			return nil, domain.NewDomainError(err, "failed to create benchmark session")
		}
	}

	// The worker gets its own copy: the session returned to the caller
	// is never touched again once StartBenchmark returns.
	go s.executeSession(session.Clone(), input)

	return session, nil
}

// GetSession retrieves a benchmark session by ID.
func (s *BenchmarkService) GetSession(ctx context.Context, sessionID string) (*models.BenchmarkSession, error) {
	if sessionID == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "session ID cannot be empty")
	}
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to get benchmark session")
	}
	return session, nil
}

// ListSessions retrieves benchmark sessions with filtering and pagination.
func (s *BenchmarkService) ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error) {
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	sessions, err := s.repo.ListSessions(ctx, status, limit, offset)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list benchmark sessions")
	}
	return sessions, nil
}

// GetSamples retrieves the samples recorded for a session.
func (s *BenchmarkService) GetSamples(ctx context.Context, sessionID string) ([]*models.BenchmarkSample, error) {
	if sessionID == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "session ID cannot be empty")
	}
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	samples, err := s.repo.GetSamples(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to get benchmark samples")
	}
	return samples, nil
}

// GetPairReports retrieves the pair reports recorded for a session.
func (s *BenchmarkService) GetPairReports(ctx context.Context, sessionID string) ([]*models.PairReport, error) {
	if sessionID == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "session ID cannot be empty")
	}
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	reports, err := s.repo.GetPairReports(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to get pair reports")
	}
	return reports, nil
}

// executeSession drives a background session to a terminal state.
func (s *BenchmarkService) executeSession(session *models.BenchmarkSession, input *ports.BenchmarkInput) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			session.MarkFailed()
			s.updateSession(ctx, session)
		}
	}()

	var samples []models.BenchmarkSample
	var reports []*models.PairReport
	var err error
	switch input.Kind {
	case models.BenchmarkKindModels:
		samples, err = s.ProfileModels(ctx, input.Models)

	case models.BenchmarkKindPair:
		var report *models.PairReport
		report, err = s.ProfilePair(ctx, input.Model1, input.Model2)
		if report != nil {
			reports = append(reports, report)
		}

	case models.BenchmarkKindCategories:
		var runs []CategoryRun
		runs, err = s.RunCategories(ctx, input.Model, input.Categories)
		for _, run := range runs {
			samples = append(samples, run.Samples...)
		}

	case models.BenchmarkKindSweep:
		var runs []SweepRun
		runs, err = s.SweepParameters(ctx, input.Model, input.ParameterSets, input.RunsPerSet)
		for _, run := range runs {
			samples = append(samples, run.Samples...)
		}
	}

	if err != nil {
		session.MarkFailed()
	} else {
		session.MarkCompleted()
	}
	s.recordResults(ctx, session, samples, reports)
}

// recordResults writes the session outcome. With a transaction manager
// the writes land in one transaction; without one they are applied
// individually, best effort.
func (s *BenchmarkService) recordResults(ctx context.Context, session *models.BenchmarkSession, samples []models.BenchmarkSample, reports []*models.PairReport) {
	if s.repo == nil {
		return
	}

	write := func(ctx context.Context) error {
		for i := range samples {
			samples[i].SessionID = session.ID
			if err := s.repo.CreateSample(ctx, &samples[i]); err != nil {
				return err
			}
		}
		for _, report := range reports {
			report.SessionID = session.ID
			if err := s.repo.CreatePairReport(ctx, report); err != nil {
				return err
			}
		}
		return s.repo.UpdateSession(ctx, session)
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		slog.Warn("failed to persist benchmark results", "session_id", session.ID, "error", err)
	}
}

// generate routes one client call through the concurrency gate and
// records the sample metric.
func (s *BenchmarkService) generate(ctx context.Context, model, prompt string, params map[string]any, timeout time.Duration) models.GenerationResult {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return models.GenerationFailure(models.ErrorKindTimeout, fmt.Sprintf("waiting for benchmark slot: %v", err), 0)
	}
	defer s.sem.Release(1)

	result := s.client.Generate(ctx, models.GenerationRequest{
		Model:      model,
		Prompt:     prompt,
		Parameters: params,
		Timeout:    timeout,
	})

	status := "ok"
	if !result.Success {
		status = result.ErrorKind
	}
	metrics.BenchmarkSamplesTotal.WithLabelValues(model, status).Inc()
	return result
}

func (s *BenchmarkService) newSample(model string, result models.GenerationResult) models.BenchmarkSample {
	return models.BenchmarkSample{
		ID:             s.ids.GenerateSampleID(),
		Model:          model,
		Success:        result.Success,
		Latency:        result.Latency,
		ResponseLength: result.ResponseLength(),
		ErrorKind:      result.ErrorKind,
		CreatedAt:      time.Now().UTC(),
	}
}

func (s *BenchmarkService) updateSession(ctx context.Context, session *models.BenchmarkSession) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		slog.Warn("failed to persist session", "session_id", session.ID, "error", err)
	}
}

func sessionConfig(input *ports.BenchmarkInput) map[string]any {
	cfg := make(map[string]any)
	switch input.Kind {
	case models.BenchmarkKindModels:
		cfg["models"] = input.Models
	case models.BenchmarkKindPair:
		cfg["model1"] = input.Model1
		cfg["model2"] = input.Model2
	case models.BenchmarkKindCategories:
		cfg["model"] = input.Model
		names := make([]string, 0, len(input.Categories))
		for _, c := range input.Categories {
			names = append(names, c.Name)
		}
		cfg["categories"] = names
	case models.BenchmarkKindSweep:
		cfg["model"] = input.Model
		cfg["runs_per_set"] = input.RunsPerSet
		names := make([]string, 0, len(input.ParameterSets))
		for _, p := range input.ParameterSets {
			names = append(names, p.Name)
		}
		cfg["parameter_sets"] = names
	}
	return cfg
}

// coolDown sleeps for the given duration unless the context ends first.
func coolDown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
