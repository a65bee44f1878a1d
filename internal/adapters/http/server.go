package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longregen/refinery/internal/adapters/http/handlers"
	"github.com/longregen/refinery/internal/adapters/http/middleware"
	"github.com/longregen/refinery/internal/config"
	"github.com/longregen/refinery/internal/ports"
)

// Server is the HTTP API for refinement runs and benchmarks.
type Server struct {
	config *config.Config
	router *chi.Mux
	server *http.Server

	runsHandler       *handlers.RunsHandler
	benchmarksHandler *handlers.BenchmarksHandler
	modelsHandler     *handlers.ModelsHandler
	healthHandler     *handlers.HealthHandler
	streamHandler     *handlers.RunStreamHandler
	wsHandler         *handlers.RunsWebSocketHandler
}

// NewServer wires the API handlers. The db pool may be nil when
// persistence is not configured; the broadcaster must be the one
// registered with the refinement service so WebSocket clients see
// progress.
func NewServer(
	cfg *config.Config,
	version string,
	refinements ports.RefinementRunner,
	refinementDefaults ports.RefinementOptions,
	benchmarks ports.BenchmarkRunner,
	client ports.GenerationClient,
	publisher ports.RefinementProgressPublisher,
	broadcaster *handlers.WebSocketBroadcaster,
	db *pgxpool.Pool,
) *Server {
	s := &Server{
		config:            cfg,
		runsHandler:       handlers.NewRunsHandler(refinements, refinementDefaults),
		benchmarksHandler: handlers.NewBenchmarksHandler(benchmarks),
		modelsHandler:     handlers.NewModelsHandler(client),
		healthHandler:     handlers.NewHealthHandlerWithDeps(version, db, client),
		streamHandler:     handlers.NewRunStreamHandler(refinements, publisher),
		wsHandler:         handlers.NewRunsWebSocketHandler(refinements, broadcaster, cfg.Server.CORSOrigins, version),
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	r.Get("/health", s.healthHandler.Handle)
	r.Get("/health/detailed", s.healthHandler.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.runsHandler.CreateRun)
			r.Get("/", s.runsHandler.ListRuns)
			r.Get("/{id}", s.runsHandler.GetRun)
			r.Get("/{id}/candidates", s.runsHandler.GetCandidates)
			r.Get("/{id}/stream", s.streamHandler.StreamRunProgress)
			r.Get("/{id}/ws", s.wsHandler.Handle)
		})

		r.Route("/benchmarks", func(r chi.Router) {
			r.Post("/", s.benchmarksHandler.CreateBenchmark)
			r.Get("/", s.benchmarksHandler.ListBenchmarks)
			r.Get("/{id}", s.benchmarksHandler.GetBenchmark)
			r.Get("/{id}/samples", s.benchmarksHandler.GetSamples)
		})

		r.Get("/models", s.modelsHandler.ListModels)
	})

	s.router = r
}

// Start begins listening. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("http server starting", "addr", addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	slog.Info("http server stopping")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
