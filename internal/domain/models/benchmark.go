package models

import (
	"maps"
	"sort"
	"time"
)

// Benchmark session kinds
const (
	BenchmarkKindModels     = "models"
	BenchmarkKindPair       = "pair"
	BenchmarkKindCategories = "categories"
	BenchmarkKindSweep      = "sweep"
)

// Benchmark session status values
const (
	BenchmarkStatusRunning   = "running"
	BenchmarkStatusCompleted = "completed"
	BenchmarkStatusFailed    = "failed"
)

// BenchmarkSession groups the samples of one harness invocation.
type BenchmarkSession struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	Config      map[string]any `json:"config,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func NewBenchmarkSession(id, kind string) *BenchmarkSession {
	now := time.Now().UTC()
	return &BenchmarkSession{
		ID:        id,
		Kind:      kind,
		Status:    BenchmarkStatusRunning,
		Config:    make(map[string]any),
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session. The background worker
// mutates its own clone, so the session handed back to the caller stays
// immutable.
func (s *BenchmarkSession) Clone() *BenchmarkSession {
	clone := *s
	clone.Config = maps.Clone(s.Config)
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

func (s *BenchmarkSession) MarkCompleted() {
	now := time.Now().UTC()
	s.Status = BenchmarkStatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}

func (s *BenchmarkSession) MarkFailed() {
	now := time.Now().UTC()
	s.Status = BenchmarkStatusFailed
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// BenchmarkSample records one model invocation. Resource deltas are zero
// when the platform probe is unavailable, never an error.
type BenchmarkSample struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id,omitempty"`
	Model          string        `json:"model"`
	Category       string        `json:"category,omitempty"`
	ParameterSet   string        `json:"parameter_set,omitempty"`
	Success        bool          `json:"success"`
	Latency        time.Duration `json:"-"`
	MemoryDelta    int64         `json:"memory_delta"`
	GPUDelta       float64       `json:"gpu_delta"`
	ResponseLength int           `json:"response_length"`
	Quality        float64       `json:"quality"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// BenchmarkSummary aggregates the successful samples of one model (and
// optionally one category or parameter set). Latency and resource
// statistics are only meaningful when Successes > 0.
type BenchmarkSummary struct {
	Model              string        `json:"model"`
	Category           string        `json:"category,omitempty"`
	ParameterSet       string        `json:"parameter_set,omitempty"`
	TotalSamples       int           `json:"total_samples"`
	Successes          int           `json:"successes"`
	SuccessRate        float64       `json:"success_rate"`
	MeanLatency        time.Duration `json:"-"`
	MedianLatency      time.Duration `json:"-"`
	MinLatency         time.Duration `json:"-"`
	MaxLatency         time.Duration `json:"-"`
	MeanMemoryDelta    float64       `json:"mean_memory_delta"`
	MeanGPUDelta       float64       `json:"mean_gpu_delta"`
	MeanResponseLength float64       `json:"mean_response_length"`
	MeanQuality        float64       `json:"mean_quality"`
}

// Summarize aggregates samples into a summary, considering only successful
// samples for latency, resource, length and quality statistics. With zero
// successes it reports SuccessRate 0 and leaves the statistics zeroed
// instead of dividing.
func Summarize(model, category string, samples []BenchmarkSample) BenchmarkSummary {
	summary := BenchmarkSummary{
		Model:        model,
		Category:     category,
		TotalSamples: len(samples),
	}

	var latencies []time.Duration
	var memSum, lenSum float64
	var gpuSum, qualSum float64
	for _, s := range samples {
		if !s.Success {
			continue
		}
		summary.Successes++
		latencies = append(latencies, s.Latency)
		memSum += float64(s.MemoryDelta)
		gpuSum += s.GPUDelta
		lenSum += float64(s.ResponseLength)
		qualSum += s.Quality
	}

	if summary.TotalSamples > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.TotalSamples)
	}
	if summary.Successes == 0 {
		return summary
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	n := len(latencies)
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	summary.MeanLatency = total / time.Duration(n)
	if n%2 == 1 {
		summary.MedianLatency = latencies[n/2]
	} else {
		summary.MedianLatency = (latencies[n/2-1] + latencies[n/2]) / 2
	}
	summary.MinLatency = latencies[0]
	summary.MaxLatency = latencies[n-1]
	summary.MeanMemoryDelta = memSum / float64(n)
	summary.MeanGPUDelta = gpuSum / float64(n)
	summary.MeanResponseLength = lenSum / float64(n)
	summary.MeanQuality = qualSum / float64(n)
	return summary
}

// PairReport records one concurrent two-model invocation: both calls are
// in flight at the same time and both are awaited before the report is
// built. OverallSuccess is true only when both calls succeeded.
type PairReport struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id,omitempty"`
	Model1         string        `json:"model1"`
	Model2         string        `json:"model2"`
	Model1Success  bool          `json:"model1_success"`
	Model2Success  bool          `json:"model2_success"`
	Model1Latency  time.Duration `json:"-"`
	Model2Latency  time.Duration `json:"-"`
	TotalTime      time.Duration `json:"-"`
	OverallSuccess bool          `json:"overall_success"`
	CreatedAt      time.Time     `json:"created_at"`
}
