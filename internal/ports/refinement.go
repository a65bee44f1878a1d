package ports

import (
	"context"

	"github.com/longregen/refinery/internal/domain/models"
)

// RefinementProgressEvent represents a progress update during a refinement.
// This is the canonical event type for pub/sub progress notifications.
type RefinementProgressEvent struct {
	Type          string  `json:"type"` // "started", "round", "accepted", "rejected", "completed", "failed"
	RunID         string  `json:"run_id"`
	Round         int     `json:"round"`
	MaxIterations int     `json:"max_iterations"`
	CurrentScore  float64 `json:"current_score"`
	BestScore     float64 `json:"best_score"`
	Prompt        string  `json:"prompt,omitempty"`
	Status        string  `json:"status"`
	Message       string  `json:"message,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

// RefinementProgressBroadcaster pushes progress events to WebSocket
// clients subscribed to a run. Implementations must not block.
type RefinementProgressBroadcaster interface {
	BroadcastRefinementProgress(runID string, event RefinementProgressEvent)
}

// RefinementProgressPublisher defines the interface for pub/sub progress
// notifications. Implementations can use WebSocket, SSE, or other transports.
type RefinementProgressPublisher interface {
	// Subscribe creates a subscription for progress events for a specific run
	Subscribe(runID string) <-chan RefinementProgressEvent

	// Unsubscribe removes a subscription; the channel must be the one
	// returned by Subscribe
	Unsubscribe(runID string, ch <-chan RefinementProgressEvent)

	// PublishProgress broadcasts an event to all subscribers of the run
	PublishProgress(event RefinementProgressEvent)

	// Close closes all channels for a run (called on completion)
	Close(runID string)
}

// RefinementOptions carries the per-call knobs of one refinement.
type RefinementOptions struct {
	// PromptType selects the optimization template ("general", "creative",
	// "technical", "analytical")
	PromptType string `json:"prompt_type,omitempty"`

	// MaxIterations caps the number of refinement rounds
	MaxIterations int `json:"max_iterations"`

	// ImprovementThreshold is the minimum score delta over the current
	// best required to accept a candidate prompt
	ImprovementThreshold float64 `json:"improvement_threshold"`
}

// RefinementRunner is the entry point for running prompt refinements and
// querying their recorded state.
type RefinementRunner interface {
	// Refine runs a refinement synchronously and returns its result.
	// Generation failures end the loop early and surface inside the
	// result; the error covers invalid input only.
	Refine(ctx context.Context, prompt string, opts RefinementOptions) (*models.RefinementResult, error)

	// StartRun launches a refinement in the background and returns the
	// created run; progress is reported via the progress publisher.
	StartRun(ctx context.Context, prompt string, opts RefinementOptions) (*models.RefinementRun, error)

	GetRun(ctx context.Context, runID string) (*models.RefinementRun, error)
	ListRuns(ctx context.Context, status string, limit, offset int) ([]*models.RefinementRun, error)
	GetCandidates(ctx context.Context, runID string) ([]*models.RefinementCandidate, error)
}
