package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/refinery/internal/adapters/ollama"
	"github.com/longregen/refinery/internal/adapters/retry"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/longregen/refinery/internal/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global variables
var (
	cfg    *config.Config
	client *ollama.Client
)

// initDB initializes a database connection pool for CLI commands
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("PostgreSQL connection required. Set REFINERY_POSTGRES_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Force UTC timezone to prevent timezone-related issues with TIMESTAMP columns
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}

// waitForGeneration probes the generation service with backoff until it
// answers. Generation calls themselves are never retried; only this
// startup readiness check is.
func waitForGeneration(ctx context.Context) error {
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func() error {
		if !client.Probe(ctx) {
			return retry.ErrNotReady
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("generation service unreachable at %s: %w", cfg.Generation.URL, err)
	}
	return nil
}

// refinementConfig maps the loaded configuration onto the refinement
// service's config shape.
func refinementConfig() services.RefinementConfig {
	return services.RefinementConfig{
		Executor: services.RoleConfig{
			Model:      cfg.Executor.Model,
			Parameters: cfg.Executor.Parameters(),
			Timeout:    cfg.Executor.Timeout(),
		},
		Optimizer: services.RoleConfig{
			Model:      cfg.Optimizer.Model,
			Parameters: cfg.Optimizer.Parameters(),
			Timeout:    cfg.Optimizer.Timeout(),
		},
		MaxIterations:        cfg.Refinement.MaxIterations,
		ImprovementThreshold: cfg.Refinement.ImprovementThreshold,
	}
}

// benchmarkConfig maps the loaded configuration onto the benchmark
// service's config shape, keeping the built-in prompts.
func benchmarkConfig() services.BenchmarkConfig {
	bc := services.DefaultBenchmarkConfig()
	bc.Timeout = time.Duration(cfg.Generation.TimeoutSeconds) * time.Second
	bc.PairTimeout = time.Duration(cfg.Benchmark.PairTimeoutSeconds) * time.Second
	bc.ModelCooldown = time.Duration(cfg.Benchmark.ModelCooldownSeconds) * time.Second
	bc.PromptCooldown = time.Duration(cfg.Benchmark.PromptCooldownSeconds) * time.Second
	bc.PairCooldown = time.Duration(cfg.Benchmark.PairCooldownSeconds) * time.Second
	bc.RunsPerSet = cfg.Benchmark.RunsPerSet
	bc.MaxConcurrent = int64(cfg.Benchmark.MaxConcurrent)
	bc.VRAMBudgetMiB = cfg.Benchmark.VRAMBudgetMiB
	return bc
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}

// formatLatency renders a duration in milliseconds for table output.
func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
