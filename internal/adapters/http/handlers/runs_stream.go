package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
)

// RunStreamHandler handles SSE streaming for refinement run progress
type RunStreamHandler struct {
	refinements ports.RefinementRunner
	publisher   ports.RefinementProgressPublisher
}

// NewRunStreamHandler creates a new run stream handler
func NewRunStreamHandler(refinements ports.RefinementRunner, publisher ports.RefinementProgressPublisher) *RunStreamHandler {
	return &RunStreamHandler{
		refinements: refinements,
		publisher:   publisher,
	}
}

// StreamRunProgress handles GET /api/v1/runs/{id}/stream.
// Establishes an SSE connection for real-time refinement progress.
func (h *RunStreamHandler) StreamRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := validateURLParam(r, w, "id", "Run ID")
	if !ok {
		return
	}

	run, err := h.refinements.GetRun(r.Context(), runID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "internal_error", "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Send initial connection event
	h.sendEvent(w, flusher, ports.RefinementProgressEvent{
		Type:      "connected",
		RunID:     runID,
		Status:    run.Status,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	// A run that already reached a terminal state has nothing further
	// to stream
	if run.Status != models.RefinementStatusRunning {
		return
	}

	slog.Info("sse stream established", "run_id", runID)

	progressChan := h.publisher.Subscribe(runID)
	defer h.publisher.Unsubscribe(runID, progressChan)

	keepaliveTicker := time.NewTicker(30 * time.Second)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("sse client disconnected", "run_id", runID)
			return

		case event, ok := <-progressChan:
			if !ok {
				// Channel closed, run complete
				slog.Info("sse progress channel closed", "run_id", runID)
				return
			}

			h.sendEvent(w, flusher, event)

			if event.Type == "completed" || event.Type == "failed" {
				slog.Info("sse run finished", "run_id", runID, "status", event.Status)
				return
			}

		case <-keepaliveTicker.C:
			// Comment line keeps idle connections from timing out
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *RunStreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event ports.RefinementProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("sse event marshal failed", "error", err)
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
