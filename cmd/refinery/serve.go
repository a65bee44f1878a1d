package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/refinery/internal/adapters/http"
	"github.com/longregen/refinery/internal/adapters/http/handlers"
	"github.com/longregen/refinery/internal/adapters/id"
	"github.com/longregen/refinery/internal/adapters/postgres"
	"github.com/longregen/refinery/internal/adapters/resource"
	"github.com/longregen/refinery/internal/adapters/tracing"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Refinery HTTP API server.

The server provides REST endpoints for refinement runs and benchmark
sessions, run progress over SSE and WebSocket, and Prometheus metrics.

Required configuration:
  - Generation service endpoint (REFINERY_GENERATION_URL)

Optional:
  - PostgreSQL persistence (REFINERY_POSTGRES_URL); without it, runs
    and sessions are not recorded and history endpoints return 409`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context) error {
	slog.Info("starting refinery api server",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"generation_url", cfg.Generation.URL,
		"persistence", cfg.IsDatabaseConfigured(),
	)

	// Initialize OpenTelemetry tracing
	shutdown, err := tracing.InitTracer("refinery-api")
	if err != nil {
		slog.Warn("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				slog.Error("error shutting down tracer", "error", err)
			}
		}()
		slog.Info("opentelemetry tracing initialized")
	}

	// Wait for the generation service. The server starts either way;
	// /health/detailed reports the outage until the backend answers.
	if err := waitForGeneration(ctx); err != nil {
		slog.Warn("generation service not ready", "error", err)
	} else {
		slog.Info("generation service reachable", "url", cfg.Generation.URL)
	}

	// Connect to PostgreSQL when configured. Without it the services run
	// without persistence and history endpoints report invalid state.
	var pool *pgxpool.Pool
	if cfg.IsDatabaseConfigured() {
		pool, err = initDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		slog.Info("database connection established")
	} else {
		slog.Info("persistence disabled, no database configured")
	}

	idGen := id.New()

	// The broadcaster pushes run progress to WebSocket subscribers; the
	// publisher built on it also feeds the SSE stream.
	broadcaster := handlers.NewWebSocketBroadcaster()

	refinementService := services.NewRefinementService(client, idGen, refinementConfig()).
		WithBroadcaster(broadcaster)
	benchmarkService := services.NewBenchmarkService(client, resource.NewProbe(), idGen, benchmarkConfig())

	if pool != nil {
		txManager := postgres.NewTransactionManager(pool)
		refinementService.WithRepository(postgres.NewRefinementRepository(pool))
		benchmarkService.WithRepository(postgres.NewBenchmarkRepository(pool)).
			WithTransactionManager(txManager)
	}

	server := http.NewServer(
		cfg,
		version,
		refinementService,
		refinementService.DefaultOptions(),
		benchmarkService,
		client,
		refinementService.ProgressPublisher(),
		broadcaster,
		pool,
	)

	// Set up graceful shutdown
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		serverErrors <- server.Start()
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		slog.Info("server stopped")
		return nil
	}
}
