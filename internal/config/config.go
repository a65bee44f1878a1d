package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for refinery
type Config struct {
	Generation GenerationConfig `json:"generation"`
	Executor   RoleConfig       `json:"executor"`
	Optimizer  RoleConfig       `json:"optimizer"`
	Refinement RefinementConfig `json:"refinement"`
	Benchmark  BenchmarkConfig  `json:"benchmark"`
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
}

// GenerationConfig holds the generation service endpoint configuration
type GenerationConfig struct {
	URL            string `json:"url"`             // Base URL of the Ollama-compatible service
	TimeoutSeconds int    `json:"timeout_seconds"` // Default per-request timeout (default: 120)
}

// RoleConfig configures one model role of the refinement loop
type RoleConfig struct {
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// Timeout returns the role's per-request timeout.
func (r RoleConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Parameters returns the role's generation parameters in wire form.
func (r RoleConfig) Parameters() map[string]any {
	return map[string]any{
		"temperature": r.Temperature,
		"top_p":       r.TopP,
		"num_predict": r.MaxTokens,
	}
}

// RefinementConfig holds refinement loop defaults
type RefinementConfig struct {
	MaxIterations        int     `json:"max_iterations"`
	ImprovementThreshold float64 `json:"improvement_threshold"`
}

// BenchmarkConfig holds benchmark harness configuration
type BenchmarkConfig struct {
	MaxConcurrent         int     `json:"max_concurrent"`          // Concurrent generation calls (default: 2)
	RunsPerSet            int     `json:"runs_per_set"`            // Repetitions per sweep parameter set (default: 3)
	PairTimeoutSeconds    int     `json:"pair_timeout_seconds"`    // Per-call timeout during pair tests (default: 60)
	ModelCooldownSeconds  int     `json:"model_cooldown_seconds"`  // Pause between sequential models (default: 2)
	PromptCooldownSeconds int     `json:"prompt_cooldown_seconds"` // Pause between battery prompts (default: 1)
	PairCooldownSeconds   int     `json:"pair_cooldown_seconds"`   // Pause between pair tests (default: 5)
	VRAMBudgetMiB         float64 `json:"vram_budget_mib"`         // Combined VRAM cap for pair recommendations
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL disables
// persistence; the services then run in-memory only.
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"` // Allowed CORS origins
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			URL:            "http://localhost:11434",
			TimeoutSeconds: 120,
		},
		Executor: RoleConfig{
			Model:          "mistral:7b",
			Temperature:    0.7,
			TopP:           0.9,
			MaxTokens:      2048,
			TimeoutSeconds: 120,
		},
		Optimizer: RoleConfig{
			Model:          "llama3.2:3b",
			Temperature:    0.3,
			TopP:           0.8,
			MaxTokens:      1024,
			TimeoutSeconds: 120,
		},
		Refinement: RefinementConfig{
			MaxIterations:        3,
			ImprovementThreshold: 0.15,
		},
		Benchmark: BenchmarkConfig{
			MaxConcurrent:         2,
			RunsPerSet:            3,
			PairTimeoutSeconds:    60,
			ModelCooldownSeconds:  2,
			PromptCooldownSeconds: 1,
			PairCooldownSeconds:   5,
			VRAMBudgetMiB:         7500,
		},
		Database: DatabaseConfig{
			PostgresURL: "",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"}, // Default development origin
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	// Load generation service configuration from environment
	envString("REFINERY_GENERATION_URL", &cfg.Generation.URL)
	envInt("REFINERY_GENERATION_TIMEOUT_SECONDS", &cfg.Generation.TimeoutSeconds)

	// Load executor role configuration from environment
	envString("REFINERY_EXECUTOR_MODEL", &cfg.Executor.Model)
	envFloat("REFINERY_EXECUTOR_TEMPERATURE", &cfg.Executor.Temperature)
	envFloat("REFINERY_EXECUTOR_TOP_P", &cfg.Executor.TopP)
	envInt("REFINERY_EXECUTOR_MAX_TOKENS", &cfg.Executor.MaxTokens)
	envInt("REFINERY_EXECUTOR_TIMEOUT_SECONDS", &cfg.Executor.TimeoutSeconds)

	// Load optimizer role configuration from environment
	envString("REFINERY_OPTIMIZER_MODEL", &cfg.Optimizer.Model)
	envFloat("REFINERY_OPTIMIZER_TEMPERATURE", &cfg.Optimizer.Temperature)
	envFloat("REFINERY_OPTIMIZER_TOP_P", &cfg.Optimizer.TopP)
	envInt("REFINERY_OPTIMIZER_MAX_TOKENS", &cfg.Optimizer.MaxTokens)
	envInt("REFINERY_OPTIMIZER_TIMEOUT_SECONDS", &cfg.Optimizer.TimeoutSeconds)

	// Load refinement loop configuration from environment
	envInt("REFINERY_MAX_ITERATIONS", &cfg.Refinement.MaxIterations)
	envFloat("REFINERY_IMPROVEMENT_THRESHOLD", &cfg.Refinement.ImprovementThreshold)

	// Load benchmark configuration from environment
	envInt("REFINERY_BENCH_MAX_CONCURRENT", &cfg.Benchmark.MaxConcurrent)
	envInt("REFINERY_BENCH_RUNS_PER_SET", &cfg.Benchmark.RunsPerSet)
	envInt("REFINERY_BENCH_PAIR_TIMEOUT_SECONDS", &cfg.Benchmark.PairTimeoutSeconds)
	envInt("REFINERY_BENCH_MODEL_COOLDOWN_SECONDS", &cfg.Benchmark.ModelCooldownSeconds)
	envInt("REFINERY_BENCH_PROMPT_COOLDOWN_SECONDS", &cfg.Benchmark.PromptCooldownSeconds)
	envInt("REFINERY_BENCH_PAIR_COOLDOWN_SECONDS", &cfg.Benchmark.PairCooldownSeconds)
	envFloat("REFINERY_BENCH_VRAM_BUDGET_MIB", &cfg.Benchmark.VRAMBudgetMiB)

	// Load database configuration from environment
	envString("REFINERY_POSTGRES_URL", &cfg.Database.PostgresURL)

	// Load server configuration from environment
	envString("REFINERY_SERVER_HOST", &cfg.Server.Host)
	envInt("REFINERY_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("REFINERY_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDatabaseConfigured returns true if PostgreSQL persistence is configured
func (c *Config) IsDatabaseConfigured() bool {
	return c.Database.PostgresURL != ""
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	// Generation service validation
	if c.Generation.URL == "" {
		errs = append(errs, "generation URL is required")
	} else if !isValidURL(c.Generation.URL) {
		errs = append(errs, "generation URL must be a valid URL")
	}
	if c.Generation.TimeoutSeconds < 1 {
		errs = append(errs, "generation timeout must be positive")
	}

	// Role validation
	roles := []struct {
		name string
		cfg  RoleConfig
	}{
		{"executor", c.Executor},
		{"optimizer", c.Optimizer},
	}
	for _, role := range roles {
		if role.cfg.Model == "" {
			errs = append(errs, fmt.Sprintf("%s model is required", role.name))
		}
		if role.cfg.Temperature < 0 || role.cfg.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("%s temperature must be between 0 and 2", role.name))
		}
		if role.cfg.TopP <= 0 || role.cfg.TopP > 1 {
			errs = append(errs, fmt.Sprintf("%s top_p must be between 0 and 1", role.name))
		}
		if role.cfg.MaxTokens < 1 {
			errs = append(errs, fmt.Sprintf("%s max_tokens must be positive", role.name))
		}
		if role.cfg.TimeoutSeconds < 1 {
			errs = append(errs, fmt.Sprintf("%s timeout must be positive", role.name))
		}
	}

	// Refinement validation
	if c.Refinement.MaxIterations < 0 {
		errs = append(errs, "max_iterations cannot be negative")
	}
	if c.Refinement.ImprovementThreshold < 0 {
		errs = append(errs, "improvement_threshold cannot be negative")
	}

	// Benchmark validation
	if c.Benchmark.MaxConcurrent < 1 {
		errs = append(errs, "benchmark max_concurrent must be at least 1")
	}
	if c.Benchmark.RunsPerSet < 1 {
		errs = append(errs, "benchmark runs_per_set must be at least 1")
	}
	if c.Benchmark.PairTimeoutSeconds < 1 {
		errs = append(errs, "benchmark pair timeout must be positive")
	}
	if c.Benchmark.VRAMBudgetMiB <= 0 {
		errs = append(errs, "benchmark vram_budget_mib must be positive")
	}

	// Database validation
	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("REFINERY_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	return filepath.Join(homeDir, ".config", "refinery", "config.json")
}
