package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/gorilla/websocket"

	"github.com/smazurov/loopcast/internal/events"
)

const (
	eventBufferSize = 32
	wsWriteTimeout  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
)

// ConnectedEvent is the first message of every event feed.
type ConnectedEvent struct {
	Message   string `json:"message" example:"Event stream connected" doc:"Connection message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// wsMessage wraps an event for the WebSocket feed, which has no event names.
type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newConnectedEvent() ConnectedEvent {
	return ConnectedEvent{
		Message:   "Event stream connected",
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time session state changes, crashes and configuration reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":                  ConnectedEvent{},
		"session-state-changed":      events.SessionStateChangedEvent{},
		"session-crashed":            events.SessionCrashedEvent{},
		"encoding-defaults-reloaded": events.EncodingDefaultsReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, eventBufferSize)
		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(newConnectedEvent()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closing:
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// registerWebSocketRoutes mounts /ws/events directly on the router since
// huma does not model protocol upgrades.
func (s *Server) registerWebSocketRoutes() {
	s.router.Get("/ws/events", s.handleWebSocketEvents)
}

func (s *Server) handleWebSocketEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	s.logger.Debug("WebSocket client connected", "remote_addr", r.RemoteAddr)

	eventCh := make(chan any, eventBufferSize)
	unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
	defer unsubscribe()

	// The feed is one-way; reading only detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg wsMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	if err := write(wsMessage{Event: "connected", Data: newConnectedEvent()}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			s.logger.Debug("WebSocket client disconnected", "remote_addr", r.RemoteAddr)
			return
		case <-s.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case event := <-eventCh:
			if err := write(wsMessage{Event: events.Name(event), Data: event}); err != nil {
				return
			}
		}
	}
}
