// Package chat provides the socket-facing coordinator: it receives
// client events, drives the session store and agent gateway, and
// emits the paired response events.
package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Nex2i/Polygloss/internal/agent"
	"github.com/Nex2i/Polygloss/internal/auth"
	"github.com/Nex2i/Polygloss/internal/config"
	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/protocol"
	"github.com/Nex2i/Polygloss/internal/store"
)

// Server handles WebSocket chat connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	store    store.Store
	gateway  agent.Gateway
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

// NewServer creates a new chat WebSocket server. Store and gateway
// are injected so tests get deterministic setup and teardown.
func NewServer(cfg *config.Config, h *hub.Hub, st store.Store, gw agent.Gateway, verifier *auth.Verifier) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		store:    st,
		gateway:  gw,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from a separately hosted UI
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	userID := s.verifier.ResolveUser(c.Request())

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws, userID)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleEvent(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent dispatches incoming events to the appropriate handler.
// Errors stay contained to the event that caused them: every failure
// becomes the paired ":failure" event and the connection stays up.
func (s *Server) handleEvent(conn *hub.Connection, data []byte) {
	var envelope protocol.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch envelope.Type {
	case protocol.EventCreateSession:
		s.handleCreateSession(conn, data)
	case protocol.EventSendTrainingMessage:
		s.handleTrainingMessage(conn, data)
	case protocol.EventSendChatMessage:
		s.handleChatMessage(conn, data)
	case protocol.EventGetChatHistory:
		s.handleGetHistory(conn, data)
	case protocol.EventClearChatHistory:
		s.handleClearHistory(conn, data)
	case protocol.EventGetChatStats:
		s.handleGetStats(conn, data)
	default:
		s.sendError(conn, "unknown event type: "+envelope.Type)
	}
}

// sendError emits a bare "error" event for frames that cannot be
// matched to a request event.
func (s *Server) sendError(conn *hub.Connection, message string) {
	resp := protocol.FailureResponse{
		Envelope: protocol.Envelope{
			Type: protocol.EventError,
			Ts:   time.Now().UnixMilli(),
		},
		Error: message,
	}
	if err := s.hub.SendJSONToConnection(conn, resp); err != nil {
		log.Printf("Failed to send error event: %v", err)
	}
}

// sendFailure emits a ":failure" event for the given request event to
// one connection.
func (s *Server) sendFailure(conn *hub.Connection, event, message string) {
	resp := protocol.FailureResponse{
		Envelope: protocol.Envelope{
			Type: protocol.Failure(event),
			Ts:   time.Now().UnixMilli(),
		},
		Error: message,
	}
	if err := s.hub.SendJSONToConnection(conn, resp); err != nil {
		log.Printf("Failed to send failure event: %v", err)
	}
}

// failSession emits a ":failure" event to every connection of a
// session. Used for failures discovered after the handler returned.
func (s *Server) failSession(sessionID, event, message string) {
	resp := protocol.FailureResponse{
		Envelope: protocol.Envelope{
			Type: protocol.Failure(event),
			Ts:   time.Now().UnixMilli(),
		},
		Error: message,
	}
	if err := s.hub.BroadcastJSON(sessionID, resp); err != nil {
		log.Printf("Failed to broadcast failure event: %v", err)
	}
}
