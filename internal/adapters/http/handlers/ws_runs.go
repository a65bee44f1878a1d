package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longregen/refinery/internal/ports"
	"github.com/longregen/refinery/pkg/protocol"
)

// RunsWebSocketHandler streams refinement progress over a msgpack
// WebSocket. The connection starts subscribed to the run in the URL;
// Subscribe and Unsubscribe messages adjust the set afterwards.
type RunsWebSocketHandler struct {
	upgrader    websocket.Upgrader
	refinements ports.RefinementRunner
	broadcaster *WebSocketBroadcaster
	version     string
}

// NewRunsWebSocketHandler creates a new WebSocket progress handler
func NewRunsWebSocketHandler(
	refinements ports.RefinementRunner,
	broadcaster *WebSocketBroadcaster,
	allowedOrigins []string,
	version string,
) *RunsWebSocketHandler {
	allowedOriginsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedOriginsMap[origin] = true
	}

	return &RunsWebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowedOriginsMap[origin]
			},
		},
		refinements: refinements,
		broadcaster: broadcaster,
		version:     version,
	}
}

// Handle handles GET /api/v1/runs/{id}/ws
func (h *RunsWebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	runID, ok := validateURLParam(r, w, "id", "Run ID")
	if !ok {
		return
	}

	run, err := h.refinements.GetRun(r.Context(), runID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	subscribed := map[string]struct{}{runID: {}}
	h.broadcaster.Subscribe(runID, conn)
	defer func() {
		for id := range subscribed {
			h.broadcaster.Unsubscribe(id, conn)
		}
	}()

	slog.Info("websocket connection established", "run_id", runID)

	h.sendEnvelope(conn, runID, protocol.TypeServerInfo, &protocol.ServerInfo{
		Version:   h.version,
		Timestamp: time.Now().Unix(),
	})
	h.sendEnvelope(conn, runID, protocol.TypeSubscribeAck, &protocol.SubscribeAck{
		RunID:   runID,
		Success: true,
		Status:  run.Status,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		h.readPump(ctx, conn, subscribed)
		cancel()
	}()

	go func() {
		defer wg.Done()
		h.writePump(ctx, conn)
	}()

	wg.Wait()
	slog.Info("websocket connection closed", "run_id", runID)
}

func (h *RunsWebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, subscribed map[string]struct{}) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "error", err)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		envelope, err := protocol.DecodeEnvelope(data)
		if err != nil {
			h.sendError(conn, "", protocol.ErrCodeMalformedData, "Failed to decode message")
			continue
		}

		h.handleMessage(ctx, conn, envelope, subscribed)
	}
}

func (h *RunsWebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, envelope *protocol.Envelope, subscribed map[string]struct{}) {
	switch envelope.Type {
	case protocol.TypeSubscribe:
		sub, err := protocol.DecodeBody[protocol.Subscribe](envelope)
		if err != nil || sub.RunID == "" {
			h.sendError(conn, envelope.RunID, protocol.ErrCodeMalformedData, "Subscribe requires a run ID")
			return
		}

		run, err := h.refinements.GetRun(ctx, sub.RunID)
		if err != nil {
			h.sendEnvelope(conn, sub.RunID, protocol.TypeSubscribeAck, &protocol.SubscribeAck{
				RunID:   sub.RunID,
				Success: false,
			})
			return
		}

		if _, ok := subscribed[sub.RunID]; !ok {
			subscribed[sub.RunID] = struct{}{}
			h.broadcaster.Subscribe(sub.RunID, conn)
		}
		h.sendEnvelope(conn, sub.RunID, protocol.TypeSubscribeAck, &protocol.SubscribeAck{
			RunID:   sub.RunID,
			Success: true,
			Status:  run.Status,
		})

	case protocol.TypeUnsubscribe:
		unsub, err := protocol.DecodeBody[protocol.Unsubscribe](envelope)
		if err != nil || unsub.RunID == "" {
			h.sendError(conn, envelope.RunID, protocol.ErrCodeMalformedData, "Unsubscribe requires a run ID")
			return
		}

		if _, ok := subscribed[unsub.RunID]; ok {
			delete(subscribed, unsub.RunID)
			h.broadcaster.Unsubscribe(unsub.RunID, conn)
		}
		h.sendEnvelope(conn, unsub.RunID, protocol.TypeUnsubscribeAck, &protocol.UnsubscribeAck{
			RunID:   unsub.RunID,
			Success: true,
		})

	default:
		h.sendError(conn, envelope.RunID, protocol.ErrCodeUnknownType, "Unsupported message type "+envelope.Type.String())
	}
}

func (h *RunsWebSocketHandler) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *RunsWebSocketHandler) sendEnvelope(conn *websocket.Conn, runID string, msgType protocol.MessageType, body any) {
	data, err := protocol.NewEnvelope(runID, msgType, body).Encode()
	if err != nil {
		slog.Error("websocket envelope encode failed", "type", msgType.String(), "error", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		slog.Warn("websocket write failed", "type", msgType.String(), "error", err)
	}
}

func (h *RunsWebSocketHandler) sendError(conn *websocket.Conn, runID string, code int32, message string) {
	h.sendEnvelope(conn, runID, protocol.TypeError, &protocol.ErrorMessage{
		Code:        code,
		Message:     message,
		Severity:    protocol.SeverityError,
		Recoverable: true,
	})
}
