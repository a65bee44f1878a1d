package models

import (
	"maps"
	"time"
)

// RefinementRun status values
const (
	RefinementStatusRunning   = "running"
	RefinementStatusCompleted = "completed"
	RefinementStatusFailed    = "failed"
)

// RefinementRun is the persisted envelope of one dual-model refinement:
// the executor model answers the prompt, the optimizer model proposes a
// better prompt, and the executor is re-run on the candidate until the
// score stops improving or the iteration budget runs out.
type RefinementRun struct {
	ID              string         `json:"id"`
	PromptType      string         `json:"prompt_type"`
	Status          string         `json:"status"`
	OriginalPrompt  string         `json:"original_prompt"`
	BestPrompt      string         `json:"best_prompt"`
	InitialResponse string         `json:"initial_response,omitempty"`
	FinalResponse   string         `json:"final_response,omitempty"`
	BestScore       float64        `json:"best_score"`
	Rounds          int            `json:"rounds"`
	MaxIterations   int            `json:"max_iterations"`
	Config          map[string]any `json:"config,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func NewRefinementRun(id, originalPrompt, promptType string, maxIterations int) *RefinementRun {
	now := time.Now().UTC()
	return &RefinementRun{
		ID:             id,
		PromptType:     promptType,
		Status:         RefinementStatusRunning,
		OriginalPrompt: originalPrompt,
		BestPrompt:     originalPrompt,
		MaxIterations:  maxIterations,
		Config:         make(map[string]any),
		Meta:           make(map[string]any),
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy of the run. The background worker mutates
// its own clone, so the run handed back to the caller stays immutable.
func (r *RefinementRun) Clone() *RefinementRun {
	clone := *r
	clone.Config = maps.Clone(r.Config)
	clone.Meta = maps.Clone(r.Meta)
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// MarkCompleted copies the result into the run and closes it out.
func (r *RefinementRun) MarkCompleted(result *RefinementResult) {
	now := time.Now().UTC()
	r.Status = RefinementStatusCompleted
	if result != nil {
		r.BestPrompt = result.BestPrompt
		r.InitialResponse = result.InitialResponse
		r.FinalResponse = result.FinalResponse
		r.BestScore = result.BestScore
		r.Rounds = result.Rounds
		if result.Meta != nil {
			r.Meta = result.Meta
		}
	}
	r.CompletedAt = &now
	r.UpdatedAt = now
}

func (r *RefinementRun) MarkFailed() {
	now := time.Now().UTC()
	r.Status = RefinementStatusFailed
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// RefinementCandidate is one accepted round: the prompt the optimizer
// proposed, the executor's response to it, and the score that beat the
// previous best. Candidates belong to exactly one run.
type RefinementCandidate struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Round     int       `json:"round"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRefinementCandidate(id, runID string, round int, prompt, response string, score float64) *RefinementCandidate {
	return &RefinementCandidate{
		ID:        id,
		RunID:     runID,
		Round:     round,
		Prompt:    prompt,
		Response:  response,
		Score:     score,
		CreatedAt: time.Now().UTC(),
	}
}

// RefinementResult is the externally visible artifact of one refinement.
// Invariants: BestScore >= 0, and Rounds == 0 implies BestPrompt equals
// OriginalPrompt.
type RefinementResult struct {
	OriginalPrompt  string         `json:"original_prompt"`
	BestPrompt      string         `json:"best_prompt"`
	InitialResponse string         `json:"initial_response,omitempty"`
	FinalResponse   string         `json:"final_response,omitempty"`
	BestScore       float64        `json:"best_score"`
	Rounds          int            `json:"rounds"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// Improved reports whether any round beat the original prompt.
func (r *RefinementResult) Improved() bool {
	return r.Rounds > 0
}
