package ports

import (
	"context"

	"github.com/longregen/refinery/internal/domain/models"
)

// GenerationClient wraps a single round-trip to the generation service.
// Generate performs exactly one outbound call and reports failure inside
// the result rather than as an error; it never retries. Retrying, when
// wanted, belongs to the caller.
type GenerationClient interface {
	Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult

	// Probe checks reachability of the generation service with a
	// read-only call. No side effects beyond the request itself.
	Probe(ctx context.Context) bool

	// ListModels returns the models the service advertises.
	ListModels(ctx context.Context) ([]models.ModelInfo, error)

	// LoadedModels returns the models currently resident in memory,
	// including VRAM residency.
	LoadedModels(ctx context.Context) ([]models.LoadedModel, error)
}

// ResourceSnapshot captures system and accelerator memory at one instant.
// Fields are zero when the underlying probe is unavailable.
type ResourceSnapshot struct {
	SystemUsed int64   `json:"system_used"`
	GPUUsedMiB float64 `json:"gpu_used_mib"`
}

// ResourceProbe measures memory usage around model invocations. Snapshot
// never fails; platforms without a GPU probe report zeros.
type ResourceProbe interface {
	Snapshot(ctx context.Context) ResourceSnapshot
}
