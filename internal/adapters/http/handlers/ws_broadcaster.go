package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/pkg/protocol"
)

const writeWait = 10 * time.Second

// WebSocketBroadcaster fans refinement progress out to WebSocket clients
// subscribed per run. It implements ports.RefinementProgressBroadcaster.
type WebSocketBroadcaster struct {
	connections map[string]map[*websocket.Conn]struct{}
	mu          sync.RWMutex
}

func NewWebSocketBroadcaster() *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		connections: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (b *WebSocketBroadcaster) Subscribe(runID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connections[runID] == nil {
		b.connections[runID] = make(map[*websocket.Conn]struct{})
	}

	b.connections[runID][conn] = struct{}{}
	slog.Debug("websocket subscribed", "run_id", runID, "total", len(b.connections[runID]))
}

func (b *WebSocketBroadcaster) Unsubscribe(runID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conns, ok := b.connections[runID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, runID)
		}
	}
}

// SubscriberCount returns the number of connections watching a run.
func (b *WebSocketBroadcaster) SubscriberCount(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.connections[runID])
}

// BroadcastRefinementProgress encodes the event as a msgpack envelope and
// sends it to every connection subscribed to the run. Write failures
// drop the connection.
func (b *WebSocketBroadcaster) BroadcastRefinementProgress(runID string, event ports.RefinementProgressEvent) {
	progress := &protocol.RunProgress{
		RunID:         runID,
		Event:         event.Type,
		Round:         event.Round,
		MaxIterations: event.MaxIterations,
		CurrentScore:  event.CurrentScore,
		BestScore:     event.BestScore,
		Prompt:        event.Prompt,
		Status:        event.Status,
		Message:       event.Message,
		Timestamp:     event.Timestamp,
	}

	data, err := protocol.NewEnvelope(runID, protocol.TypeRunProgress, progress).Encode()
	if err != nil {
		slog.Error("websocket progress encode failed", "run_id", runID, "error", err)
		return
	}

	b.broadcastBinary(runID, data)
}

// BroadcastError sends a protocol error message to a run's subscribers.
func (b *WebSocketBroadcaster) BroadcastError(runID string, code int32, message string) {
	errMsg := &protocol.ErrorMessage{
		Code:        code,
		Message:     message,
		Severity:    protocol.SeverityError,
		Recoverable: true,
	}

	data, err := protocol.NewEnvelope(runID, protocol.TypeError, errMsg).Encode()
	if err != nil {
		slog.Error("websocket error encode failed", "run_id", runID, "error", err)
		return
	}

	b.broadcastBinary(runID, data)
}

func (b *WebSocketBroadcaster) broadcastBinary(runID string, data []byte) {
	b.mu.RLock()
	conns, ok := b.connections[runID]
	if !ok || len(conns) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]*websocket.Conn, 0, len(conns))
	for conn := range conns {
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	for _, conn := range targets {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			slog.Warn("websocket broadcast failed", "run_id", runID, "error", err)
			b.Unsubscribe(runID, conn)
		}
	}
}
