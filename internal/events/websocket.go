package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Jayesh445/VeriChain-sub000/internal/identity"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler upgrades dashboard connections and streams hub events.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
	queueSize     int
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		queueSize:     DefaultQueueSize,
	}
}

type wsMessage struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade. Optional
// session_id and item_id query parameters narrow the stream.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	operator := identity.OperatorFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "operator", operator)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "operator", operator)
		}
	}()

	sub := NewSubscriber(uuid.NewString(), Filter{
		SessionID: r.URL.Query().Get("session_id"),
		ItemID:    r.URL.Query().Get("item_id"),
	}, h.queueSize)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub)

	slog.Info("Event stream opened", "subscriber_id", sub.ID, "operator", operator, "ip", identity.IPFromRequest(r))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, sub.ID)
	}()

	h.writeLoop(ctx, ws, sub)
	slog.Info("Event stream closed", "subscriber_id", sub.ID, "dropped", sub.Dropped())
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop answers pings and returns when the client goes away.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, subID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "subscriber_id", subID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "subscriber_id", subID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := h.write(ctx, ws, []byte(`{"type":"pong"}`)); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, sub *Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := h.write(ctx, ws, msg); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err, "subscriber_id", sub.ID)
				}
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, msg)
}
