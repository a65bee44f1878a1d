package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	GenerationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_generation_requests_total",
		Help: "Total generation service requests",
	}, []string{"model", "status"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_generation_duration_seconds",
		Help:    "Generation request duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"model"})

	RefinementRunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refinery_refinement_runs_active",
		Help: "Number of refinement runs in flight",
	})

	RefinementRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_refinement_rounds_total",
		Help: "Total refinement rounds by outcome",
	}, []string{"outcome"})

	BenchmarkSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_benchmark_samples_total",
		Help: "Total benchmark samples collected",
	}, []string{"model", "status"})
)
