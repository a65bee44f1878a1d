package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/longregen/refinery/internal/adapters/metrics"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/internal/scoring"
)

// Stop reasons recorded in RefinementResult.Meta. A refinement that stops
// on a generation failure is still a well-formed result, not an error.
const (
	StopReasonMaxIterations     = "max_iterations"
	StopReasonNoImprovement     = "no_improvement"
	StopReasonGenerationFailure = "generation_failure"
)

// RoleConfig describes one model role in the refinement loop: which model
// to call, the generation parameters sent with every request, and the
// per-call timeout.
type RoleConfig struct {
	Model      string
	Parameters map[string]any
	Timeout    time.Duration
}

// RefinementConfig configures the refinement service.
type RefinementConfig struct {
	// Executor answers prompts; its responses are what gets scored.
	Executor RoleConfig

	// Optimizer proposes improved prompts from the rendered template.
	Optimizer RoleConfig

	// MaxIterations caps refinement rounds when the caller does not
	// override it.
	MaxIterations int

	// ImprovementThreshold is the minimum score delta over the current
	// best required to accept a candidate.
	ImprovementThreshold float64
}

// DefaultRefinementConfig returns sensible defaults: a mid-size executor
// with creative-leaning sampling and a small, conservative optimizer.
func DefaultRefinementConfig() RefinementConfig {
	return RefinementConfig{
		Executor: RoleConfig{
			Model:      "mistral:7b",
			Parameters: map[string]any{"temperature": 0.7, "top_p": 0.9, "num_predict": 2048},
			Timeout:    120 * time.Second,
		},
		Optimizer: RoleConfig{
			Model:      "llama3.2:3b",
			Parameters: map[string]any{"temperature": 0.3, "top_p": 0.8, "num_predict": 1024},
			Timeout:    120 * time.Second,
		},
		MaxIterations:        3,
		ImprovementThreshold: 0.15,
	}
}

// RefinementService runs the dual-model refinement loop: the executor
// answers the current prompt, the optimizer proposes a rewrite, and the
// executor is re-run on the candidate. A candidate is kept only when its
// score beats the current best by more than the improvement threshold.
type RefinementService struct {
	repo      ports.RefinementRepository // optional; nil disables persistence
	client    ports.GenerationClient
	ids       ports.IDGenerator
	config    RefinementConfig
	strategy  scoring.Strategy
	templates *PromptTemplates

	// Progress publisher for real-time progress updates (WebSocket + SSE)
	progressPublisher ports.RefinementProgressPublisher
}

// Compile-time interface check
var _ ports.RefinementRunner = (*RefinementService)(nil)

// NewRefinementService creates a new refinement service.
func NewRefinementService(
	client ports.GenerationClient,
	idGenerator ports.IDGenerator,
	config RefinementConfig,
) *RefinementService {
	return &RefinementService{
		client:            client,
		ids:               idGenerator,
		config:            config,
		strategy:          scoring.NewRatioStrategy(),
		templates:         DefaultTemplates(),
		progressPublisher: NewRefinementProgressPublisher(nil),
	}
}

// WithRepository enables persistence of runs and accepted candidates.
func (s *RefinementService) WithRepository(repo ports.RefinementRepository) *RefinementService {
	s.repo = repo
	return s
}

// WithStrategy replaces the default length-ratio scoring strategy.
func (s *RefinementService) WithStrategy(strategy scoring.Strategy) *RefinementService {
	s.strategy = strategy
	return s
}

// WithTemplates replaces the optimizer prompt templates.
func (s *RefinementService) WithTemplates(templates *PromptTemplates) *RefinementService {
	s.templates = templates
	return s
}

// WithBroadcaster sets the WebSocket broadcaster for real-time progress updates.
func (s *RefinementService) WithBroadcaster(broadcaster ports.RefinementProgressBroadcaster) *RefinementService {
	s.progressPublisher = NewRefinementProgressPublisher(broadcaster)
	return s
}

// WithProgressPublisher sets a custom progress publisher.
func (s *RefinementService) WithProgressPublisher(publisher ports.RefinementProgressPublisher) *RefinementService {
	s.progressPublisher = publisher
	return s
}

// ProgressPublisher exposes the publisher so transports can subscribe to
// run progress.
func (s *RefinementService) ProgressPublisher() ports.RefinementProgressPublisher {
	return s.progressPublisher
}

// DefaultOptions returns refinement options seeded from the service
// configuration. Callers override individual fields per request.
func (s *RefinementService) DefaultOptions() ports.RefinementOptions {
	return ports.RefinementOptions{
		MaxIterations:        s.config.MaxIterations,
		ImprovementThreshold: s.config.ImprovementThreshold,
	}
}

// Refine runs the loop synchronously and returns its result. Generation
// failures end the loop early and surface inside the result; the returned
// error covers invalid input only. With MaxIterations 0 the loop body
// never runs and no generation call is made.
func (s *RefinementService) Refine(ctx context.Context, prompt string, opts ports.RefinementOptions) (*models.RefinementResult, error) {
	if prompt == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "prompt cannot be empty")
	}
	return s.runLoop(ctx, "", prompt, opts), nil
}

// StartRun creates a run record and launches the loop in the background.
// Progress is reported through the progress publisher under the run ID.
func (s *RefinementService) StartRun(ctx context.Context, prompt string, opts ports.RefinementOptions) (*models.RefinementRun, error) {
	if prompt == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "prompt cannot be empty")
	}

	taskType := opts.PromptType
	if taskType == "" {
		taskType = DetectTaskType(prompt)
	}
	opts.PromptType = taskType
	if opts.MaxIterations < 0 {
		opts.MaxIterations = 0
	}

	run := models.NewRefinementRun(s.ids.GenerateRunID(), prompt, taskType, opts.MaxIterations)
	run.Config = map[string]any{
		"executor_model":        s.config.Executor.Model,
		"optimizer_model":       s.config.Optimizer.Model,
		"improvement_threshold": opts.ImprovementThreshold,
	}

	if s.repo != nil {
		if err := s.repo.CreateRun(ctx, run); err != nil {
			return nil, domain.NewDomainError(err, "failed to create refinement run")
		}
	}

	// The worker gets its own copy: the run returned to the caller is
	// never touched again once StartRun returns.
	go s.executeRun(run.Clone(), opts)

	return run, nil
}

// GetRun retrieves a refinement run by ID.
func (s *RefinementService) GetRun(ctx context.Context, runID string) (*models.RefinementRun, error) {
	if runID == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "run ID cannot be empty")
	}
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to get refinement run")
	}
	return run, nil
}

// ListRuns retrieves refinement runs with filtering and pagination.
func (s *RefinementService) ListRuns(ctx context.Context, status string, limit, offset int) ([]*models.RefinementRun, error) {
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	runs, err := s.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list refinement runs")
	}
	return runs, nil
}

// GetCandidates retrieves the accepted candidates of a run.
func (s *RefinementService) GetCandidates(ctx context.Context, runID string) ([]*models.RefinementCandidate, error) {
	if runID == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "run ID cannot be empty")
	}
	if s.repo == nil {
		return nil, domain.NewDomainError(domain.ErrInvalidState, "persistence is not configured")
	}

	candidates, err := s.repo.GetCandidates(ctx, runID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to get candidates")
	}
	return candidates, nil
}

// executeRun drives a background run to a terminal state. It always
// closes the run's progress channels on exit.
func (s *RefinementService) executeRun(run *models.RefinementRun, opts ports.RefinementOptions) {
	ctx := context.Background()

	metrics.RefinementRunsActive.Inc()
	defer metrics.RefinementRunsActive.Dec()
	defer s.progressPublisher.Close(run.ID)
	defer func() {
		if r := recover(); r != nil {
			run.MarkFailed()
			if s.repo != nil {
				if err := s.repo.UpdateRun(ctx, run); err != nil {
					slog.Warn("failed to persist failed run", "run_id", run.ID, "error", err)
				}
			}
			s.publish(run.ID, ports.RefinementProgressEvent{
				Type:    "failed",
				Status:  models.RefinementStatusFailed,
				Message: fmt.Sprintf("refinement panicked: %v", r),
			})
		}
	}()

	s.publish(run.ID, ports.RefinementProgressEvent{
		Type:          "started",
		Status:        models.RefinementStatusRunning,
		MaxIterations: opts.MaxIterations,
		Prompt:        run.OriginalPrompt,
	})

	result := s.runLoop(ctx, run.ID, run.OriginalPrompt, opts)
	run.MarkCompleted(result)

	if s.repo != nil {
		if err := s.repo.UpdateRun(ctx, run); err != nil {
			s.publish(run.ID, ports.RefinementProgressEvent{
				Type:    "failed",
				Status:  models.RefinementStatusFailed,
				Message: fmt.Sprintf("failed to persist run: %v", err),
			})
			return
		}
	}

	s.publish(run.ID, ports.RefinementProgressEvent{
		Type:          "completed",
		Status:        models.RefinementStatusCompleted,
		Round:         result.Rounds,
		MaxIterations: opts.MaxIterations,
		BestScore:     result.BestScore,
		Prompt:        result.BestPrompt,
	})
}

// runLoop is the refinement loop proper. Each round re-runs the executor
// on the current prompt, asks the optimizer for a rewrite, runs the
// executor on the candidate, and scores the candidate response against
// this round's current response. The candidate is kept only when its
// score exceeds the best by more than the threshold; any other outcome
// ends the loop. With an empty runID no events are published and nothing
// is persisted.
func (s *RefinementService) runLoop(ctx context.Context, runID, prompt string, opts ports.RefinementOptions) *models.RefinementResult {
	startedAt := time.Now().UTC()

	taskType := opts.PromptType
	if taskType == "" {
		taskType = DetectTaskType(prompt)
	}
	maxIterations := opts.MaxIterations
	if maxIterations < 0 {
		maxIterations = 0
	}

	currentPrompt := prompt
	bestScore := 0.0
	stopReason := StopReasonMaxIterations
	var failureKind string
	var best *models.RefinementResult
	var lastResponse string

	for round := 1; round <= maxIterations; round++ {
		s.publish(runID, ports.RefinementProgressEvent{
			Type:          "round",
			Status:        models.RefinementStatusRunning,
			Round:         round,
			MaxIterations: maxIterations,
			BestScore:     bestScore,
			Prompt:        currentPrompt,
		})

		current := s.client.Generate(ctx, s.roleRequest(s.config.Executor, currentPrompt))
		if !current.Success {
			stopReason, failureKind = StopReasonGenerationFailure, current.ErrorKind
			metrics.RefinementRoundsTotal.WithLabelValues("failed").Inc()
			break
		}
		lastResponse = current.Response

		rendered := s.templates.Render(taskType, currentPrompt, current.Response)
		optimized := s.client.Generate(ctx, s.roleRequest(s.config.Optimizer, rendered))
		if !optimized.Success {
			stopReason, failureKind = StopReasonGenerationFailure, optimized.ErrorKind
			metrics.RefinementRoundsTotal.WithLabelValues("failed").Inc()
			break
		}

		candidatePrompt := optimized.Response
		candidate := s.client.Generate(ctx, s.roleRequest(s.config.Executor, candidatePrompt))
		if !candidate.Success {
			stopReason, failureKind = StopReasonGenerationFailure, candidate.ErrorKind
			metrics.RefinementRoundsTotal.WithLabelValues("failed").Inc()
			break
		}

		score := s.strategy.Score(current.Response, candidate.Response)
		if score <= bestScore+opts.ImprovementThreshold {
			stopReason = StopReasonNoImprovement
			metrics.RefinementRoundsTotal.WithLabelValues("rejected").Inc()
			s.publish(runID, ports.RefinementProgressEvent{
				Type:          "rejected",
				Status:        models.RefinementStatusRunning,
				Round:         round,
				MaxIterations: maxIterations,
				CurrentScore:  score,
				BestScore:     bestScore,
			})
			break
		}

		bestScore = score
		currentPrompt = candidatePrompt
		best = &models.RefinementResult{
			OriginalPrompt:  prompt,
			BestPrompt:      candidatePrompt,
			InitialResponse: current.Response,
			FinalResponse:   candidate.Response,
			BestScore:       score,
			Rounds:          round,
			StartedAt:       startedAt,
		}

		metrics.RefinementRoundsTotal.WithLabelValues("accepted").Inc()
		s.publish(runID, ports.RefinementProgressEvent{
			Type:          "accepted",
			Status:        models.RefinementStatusRunning,
			Round:         round,
			MaxIterations: maxIterations,
			CurrentScore:  score,
			BestScore:     bestScore,
			Prompt:        candidatePrompt,
		})
		s.saveCandidate(ctx, runID, round, candidatePrompt, candidate.Response, score)
	}

	if best == nil {
		best = &models.RefinementResult{
			OriginalPrompt:  prompt,
			BestPrompt:      prompt,
			InitialResponse: lastResponse,
			FinalResponse:   lastResponse,
			BestScore:       0.0,
			Rounds:          0,
			StartedAt:       startedAt,
		}
	}

	best.CompletedAt = time.Now().UTC()
	best.Meta = map[string]any{
		"task_type":       taskType,
		"executor_model":  s.config.Executor.Model,
		"optimizer_model": s.config.Optimizer.Model,
		"stop_reason":     stopReason,
	}
	if failureKind != "" {
		best.Meta["failure_kind"] = failureKind
	}
	return best
}

func (s *RefinementService) roleRequest(role RoleConfig, prompt string) models.GenerationRequest {
	return models.GenerationRequest{
		Model:      role.Model,
		Prompt:     prompt,
		Parameters: role.Parameters,
		Timeout:    role.Timeout,
	}
}

// saveCandidate persists one accepted round. Persistence errors do not
// interrupt the loop; the in-memory result is authoritative.
func (s *RefinementService) saveCandidate(ctx context.Context, runID string, round int, prompt, response string, score float64) {
	if runID == "" || s.repo == nil {
		return
	}
	candidate := models.NewRefinementCandidate(
		s.ids.GenerateCandidateID(),
		runID,
		round,
		prompt,
		response,
		score,
	)
	if err := s.repo.CreateCandidate(ctx, candidate); err != nil {
		slog.Warn("failed to persist candidate", "run_id", runID, "round", round, "error", err)
	}
}

func (s *RefinementService) publish(runID string, event ports.RefinementProgressEvent) {
	if runID == "" {
		return
	}
	event.RunID = runID
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	s.progressPublisher.PublishProgress(event)
}
