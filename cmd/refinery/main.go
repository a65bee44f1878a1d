package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/longregen/refinery/internal/adapters/ollama"
	"github.com/longregen/refinery/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	rootCmd := &cobra.Command{
		Use:   "refinery",
		Short: "Refinery - prompt refinement and model benchmarking CLI",
		Long: `Refinery improves prompts through a dual-model refinement loop and
profiles generation models against an Ollama-compatible service.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			client = ollama.NewClient(cfg.Generation.URL)

			return nil
		},
	}

	rootCmd.AddCommand(
		optimizeCmd(),
		benchCmd(),
		modelsCmd(),
		configCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Generation service:")
			fmt.Printf("  URL:     %s\n", cfg.Generation.URL)
			fmt.Printf("  Timeout: %ds\n", cfg.Generation.TimeoutSeconds)
			fmt.Println()

			fmt.Println("Executor:")
			fmt.Printf("  Model:       %s\n", cfg.Executor.Model)
			fmt.Printf("  Temperature: %.2f\n", cfg.Executor.Temperature)
			fmt.Printf("  Top P:       %.2f\n", cfg.Executor.TopP)
			fmt.Printf("  Max Tokens:  %d\n", cfg.Executor.MaxTokens)
			fmt.Printf("  Timeout:     %ds\n", cfg.Executor.TimeoutSeconds)
			fmt.Println()

			fmt.Println("Optimizer:")
			fmt.Printf("  Model:       %s\n", cfg.Optimizer.Model)
			fmt.Printf("  Temperature: %.2f\n", cfg.Optimizer.Temperature)
			fmt.Printf("  Top P:       %.2f\n", cfg.Optimizer.TopP)
			fmt.Printf("  Max Tokens:  %d\n", cfg.Optimizer.MaxTokens)
			fmt.Printf("  Timeout:     %ds\n", cfg.Optimizer.TimeoutSeconds)
			fmt.Println()

			fmt.Println("Refinement:")
			fmt.Printf("  Max Iterations:        %d\n", cfg.Refinement.MaxIterations)
			fmt.Printf("  Improvement Threshold: %.2f\n", cfg.Refinement.ImprovementThreshold)
			fmt.Println()

			fmt.Println("Benchmark:")
			fmt.Printf("  Max Concurrent:  %d\n", cfg.Benchmark.MaxConcurrent)
			fmt.Printf("  Runs Per Set:    %d\n", cfg.Benchmark.RunsPerSet)
			fmt.Printf("  Pair Timeout:    %ds\n", cfg.Benchmark.PairTimeoutSeconds)
			fmt.Printf("  VRAM Budget:     %.0f MiB\n", cfg.Benchmark.VRAMBudgetMiB)
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Printf("  Status:     %s\n", boolStatus(cfg.IsDatabaseConfigured()))
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host:         %s\n", cfg.Server.Host)
			fmt.Printf("  Port:         %d\n", cfg.Server.Port)
			fmt.Printf("  CORS Origins: %v\n", cfg.Server.CORSOrigins)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  REFINERY_GENERATION_URL, REFINERY_GENERATION_TIMEOUT_SECONDS")
			fmt.Println("  REFINERY_EXECUTOR_MODEL, REFINERY_EXECUTOR_TEMPERATURE, REFINERY_EXECUTOR_TOP_P,")
			fmt.Println("    REFINERY_EXECUTOR_MAX_TOKENS, REFINERY_EXECUTOR_TIMEOUT_SECONDS")
			fmt.Println("  REFINERY_OPTIMIZER_MODEL, REFINERY_OPTIMIZER_TEMPERATURE, REFINERY_OPTIMIZER_TOP_P,")
			fmt.Println("    REFINERY_OPTIMIZER_MAX_TOKENS, REFINERY_OPTIMIZER_TIMEOUT_SECONDS")
			fmt.Println("  REFINERY_MAX_ITERATIONS, REFINERY_IMPROVEMENT_THRESHOLD")
			fmt.Println("  REFINERY_BENCH_MAX_CONCURRENT, REFINERY_BENCH_RUNS_PER_SET,")
			fmt.Println("    REFINERY_BENCH_PAIR_TIMEOUT_SECONDS, REFINERY_BENCH_VRAM_BUDGET_MIB")
			fmt.Println("  REFINERY_POSTGRES_URL")
			fmt.Println("  REFINERY_SERVER_HOST, REFINERY_SERVER_PORT, REFINERY_CORS_ORIGINS")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Refinery %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
