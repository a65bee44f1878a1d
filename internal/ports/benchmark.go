package ports

import (
	"context"

	"github.com/longregen/refinery/internal/domain/models"
)

// PromptCategory is one named group of test prompts for the category
// battery (creative, technical, analytical, instruction, conversational).
type PromptCategory struct {
	Name    string   `json:"name" yaml:"name"`
	Prompts []string `json:"prompts" yaml:"prompts"`
}

// ParameterSet is one named generation parameter combination for sweeps.
type ParameterSet struct {
	Name        string  `json:"name" yaml:"name"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
}

// BenchmarkInput describes one harness invocation. Which fields apply
// depends on Kind: "models" uses Models, "pair" uses Model1/Model2,
// "categories" and "sweep" use Model plus their battery fields.
type BenchmarkInput struct {
	Kind          string           `json:"kind"`
	Models        []string         `json:"models,omitempty"`
	Model1        string           `json:"model1,omitempty"`
	Model2        string           `json:"model2,omitempty"`
	Model         string           `json:"model,omitempty"`
	Prompt        string           `json:"prompt,omitempty"`
	Categories    []PromptCategory `json:"categories,omitempty"`
	ParameterSets []ParameterSet   `json:"parameter_sets,omitempty"`
	RunsPerSet    int              `json:"runs_per_set,omitempty"`
}

// BenchmarkRunner runs benchmark sessions and exposes their recorded state.
type BenchmarkRunner interface {
	// StartBenchmark launches a benchmark session in the background and
	// returns the created session record.
	StartBenchmark(ctx context.Context, input *BenchmarkInput) (*models.BenchmarkSession, error)

	GetSession(ctx context.Context, sessionID string) (*models.BenchmarkSession, error)
	ListSessions(ctx context.Context, status string, limit, offset int) ([]*models.BenchmarkSession, error)
	GetSamples(ctx context.Context, sessionID string) ([]*models.BenchmarkSample, error)
	GetPairReports(ctx context.Context, sessionID string) ([]*models.PairReport, error)
}
