//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/longregen/refinery/internal/adapters/id"
	"github.com/longregen/refinery/internal/adapters/postgres"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// scriptedClient returns generation results by call index. Safe for
// concurrent use.
type scriptedClient struct {
	mu     sync.Mutex
	calls  int
	script func(call int, req models.GenerationRequest) models.GenerationResult
}

func (c *scriptedClient) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	c.mu.Lock()
	call := c.calls
	c.calls++
	c.mu.Unlock()
	return c.script(call, req)
}

func (c *scriptedClient) Probe(ctx context.Context) bool { return true }

func (c *scriptedClient) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	return nil, nil
}

func (c *scriptedClient) LoadedModels(ctx context.Context) ([]models.LoadedModel, error) {
	return nil, nil
}

func okResult(response string) models.GenerationResult {
	return models.GenerationResult{
		Success:  true,
		Response: response,
		Latency:  5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testRefinementConfig() services.RefinementConfig {
	return services.RefinementConfig{
		Executor: services.RoleConfig{
			Model:      "executor-model",
			Parameters: map[string]any{"temperature": 0.7},
			Timeout:    5 * time.Second,
		},
		Optimizer: services.RoleConfig{
			Model:      "optimizer-model",
			Parameters: map[string]any{"temperature": 0.3},
			Timeout:    5 * time.Second,
		},
		MaxIterations:        3,
		ImprovementThreshold: 0.15,
	}
}

// TestRefinementRunPersistsThroughPostgres drives a background run
// against a real database: the run row, its terminal state and its
// accepted candidate must all be readable back through the repository.
func TestRefinementRunPersistsThroughPostgres(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	// Round 1 improves (longer candidate response), round 2 does not.
	client := &scriptedClient{script: func(call int, req models.GenerationRequest) models.GenerationResult {
		switch call {
		case 0: // executor on the original prompt
			return okResult("short")
		case 1: // optimizer rewrite
			return okResult("an improved prompt")
		case 2: // executor on the candidate
			return okResult("a considerably longer and better response")
		case 3: // executor at the start of round two
			return okResult("a considerably longer and better response")
		case 4: // optimizer rewrite, round two
			return okResult("another rewrite")
		default: // executor on the second candidate: too short to accept
			return okResult("meh")
		}
	}}

	repo := postgres.NewRefinementRepository(db.Pool)
	service := services.NewRefinementService(client, id.New(), testRefinementConfig()).
		WithRepository(repo)

	run, err := service.StartRun(ctx, "Tell me about Go.", ports.RefinementOptions{
		MaxIterations:        3,
		ImprovementThreshold: 0.15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected a run ID")
	}

	waitFor(t, 5*time.Second, func() bool {
		stored, err := service.GetRun(ctx, run.ID)
		return err == nil && stored.Status == models.RefinementStatusCompleted
	})

	stored, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.BestPrompt != "an improved prompt" {
		t.Errorf("unexpected best prompt: %q", stored.BestPrompt)
	}
	if stored.Rounds != 1 {
		t.Errorf("expected 1 accepted round, got %d", stored.Rounds)
	}
	if stored.BestScore <= 0 {
		t.Errorf("expected a positive best score, got %f", stored.BestScore)
	}
	if stored.CompletedAt == nil {
		t.Error("expected a completion timestamp")
	}

	candidates, err := service.GetCandidates(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 persisted candidate, got %d", len(candidates))
	}
	if candidates[0].Prompt != "an improved prompt" {
		t.Errorf("unexpected candidate prompt: %q", candidates[0].Prompt)
	}
	if candidates[0].Round != 1 {
		t.Errorf("expected candidate from round 1, got %d", candidates[0].Round)
	}

	// The run shows up in listings filtered by its terminal status.
	runs, err := service.ListRuns(ctx, models.RefinementStatusCompleted, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, r := range runs {
		if r.ID == run.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected the run in the completed listing")
	}
}

// TestRefinementFailureLandsInRunRecord stops the loop on a generation
// failure and verifies the run still reaches a terminal state in the
// database, with the failure kind recorded in its meta.
func TestRefinementFailureLandsInRunRecord(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	client := &scriptedClient{script: func(call int, req models.GenerationRequest) models.GenerationResult {
		return models.GenerationFailure(models.ErrorKindNetwork, "connection refused", 0)
	}}

	service := services.NewRefinementService(client, id.New(), testRefinementConfig()).
		WithRepository(postgres.NewRefinementRepository(db.Pool))

	run, err := service.StartRun(ctx, "Explain channels.", ports.RefinementOptions{
		MaxIterations:        2,
		ImprovementThreshold: 0.15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		stored, err := service.GetRun(ctx, run.ID)
		return err == nil && stored.Status == models.RefinementStatusCompleted
	})

	stored, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A generation failure is data: the run completes with zero rounds
	// and the original prompt kept.
	if stored.Rounds != 0 {
		t.Errorf("expected no accepted rounds, got %d", stored.Rounds)
	}
	if stored.BestPrompt != "Explain channels." {
		t.Errorf("expected the original prompt kept, got %q", stored.BestPrompt)
	}
	if kind, ok := stored.Meta["failure_kind"]; !ok || kind != models.ErrorKindNetwork {
		t.Errorf("expected failure kind %q in meta, got %v", models.ErrorKindNetwork, stored.Meta)
	}
}
