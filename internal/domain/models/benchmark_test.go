package models

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name            string
		samples         []BenchmarkSample
		wantRate        float64
		wantSuccesses   int
		wantMeanLatency time.Duration
		wantMedian      time.Duration
	}{
		{
			name: "all successful",
			samples: []BenchmarkSample{
				{Model: "mistral:7b", Success: true, Latency: 1 * time.Second, ResponseLength: 100, Quality: 0.8},
				{Model: "mistral:7b", Success: true, Latency: 3 * time.Second, ResponseLength: 200, Quality: 0.6},
			},
			wantRate:        1.0,
			wantSuccesses:   2,
			wantMeanLatency: 2 * time.Second,
			wantMedian:      2 * time.Second,
		},
		{
			name: "mixed outcomes only count successes",
			samples: []BenchmarkSample{
				{Model: "mistral:7b", Success: true, Latency: 2 * time.Second, ResponseLength: 50},
				{Model: "mistral:7b", Success: false, Latency: 120 * time.Second, ErrorKind: ErrorKindTimeout},
				{Model: "mistral:7b", Success: true, Latency: 4 * time.Second, ResponseLength: 150},
			},
			wantRate:        2.0 / 3.0,
			wantSuccesses:   2,
			wantMeanLatency: 3 * time.Second,
			wantMedian:      3 * time.Second,
		},
		{
			name: "zero successes reports rate zero without statistics",
			samples: []BenchmarkSample{
				{Model: "mistral:7b", Success: false, ErrorKind: ErrorKindNetwork},
				{Model: "mistral:7b", Success: false, ErrorKind: ErrorKindBadStatus},
			},
			wantRate:        0,
			wantSuccesses:   0,
			wantMeanLatency: 0,
			wantMedian:      0,
		},
		{
			name:          "no samples at all",
			samples:       nil,
			wantRate:      0,
			wantSuccesses: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Summarize("mistral:7b", "", tt.samples)

			if summary.SuccessRate != tt.wantRate {
				t.Errorf("expected success rate %v, got %v", tt.wantRate, summary.SuccessRate)
			}
			if summary.Successes != tt.wantSuccesses {
				t.Errorf("expected %d successes, got %d", tt.wantSuccesses, summary.Successes)
			}
			if summary.MeanLatency != tt.wantMeanLatency {
				t.Errorf("expected mean latency %v, got %v", tt.wantMeanLatency, summary.MeanLatency)
			}
			if summary.MedianLatency != tt.wantMedian {
				t.Errorf("expected median latency %v, got %v", tt.wantMedian, summary.MedianLatency)
			}
			if summary.TotalSamples != len(tt.samples) {
				t.Errorf("expected %d total samples, got %d", len(tt.samples), summary.TotalSamples)
			}
		})
	}
}

func TestSummarizeMedianOddCount(t *testing.T) {
	samples := []BenchmarkSample{
		{Success: true, Latency: 1 * time.Second},
		{Success: true, Latency: 5 * time.Second},
		{Success: true, Latency: 2 * time.Second},
	}

	summary := Summarize("llama3.2:3b", "", samples)

	if summary.MedianLatency != 2*time.Second {
		t.Errorf("expected median 2s, got %v", summary.MedianLatency)
	}
	if summary.MinLatency != 1*time.Second {
		t.Errorf("expected min 1s, got %v", summary.MinLatency)
	}
	if summary.MaxLatency != 5*time.Second {
		t.Errorf("expected max 5s, got %v", summary.MaxLatency)
	}
}

func TestBenchmarkSessionLifecycle(t *testing.T) {
	session := NewBenchmarkSession("rfb_test", BenchmarkKindPair)

	if session.Status != BenchmarkStatusRunning {
		t.Errorf("expected status running, got %s", session.Status)
	}

	session.MarkFailed()

	if session.Status != BenchmarkStatusFailed {
		t.Errorf("expected status failed, got %s", session.Status)
	}
	if session.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestBenchmarkSessionClone(t *testing.T) {
	session := NewBenchmarkSession("rfb_clone", BenchmarkKindModels)
	session.Config["models"] = []string{"mistral:7b"}

	clone := session.Clone()
	if clone == session {
		t.Fatal("clone must be a distinct object")
	}

	clone.MarkCompleted()
	clone.Config["models"] = []string{"llama3.2:3b"}

	if session.Status != BenchmarkStatusRunning {
		t.Errorf("completing the clone must not touch the original, got status %s", session.Status)
	}
	if session.CompletedAt != nil {
		t.Error("original must stay open")
	}
	got, ok := session.Config["models"].([]string)
	if !ok || len(got) != 1 || got[0] != "mistral:7b" {
		t.Errorf("config must be deep-copied, got %v", session.Config["models"])
	}
}
