package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Nex2i/Polygloss/internal/domain"
	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/protocol"
)

// Defaults applied when a payload omits the field. The training path
// keeps the original fixed fallback session so drills work without a
// prior create-session.
const (
	defaultTrainingSession = "test-session"
	anonymousUser          = "anonymous"
)

// handleCreateSession gets or creates a session and returns it in
// full. Creating an id that already exists returns the existing
// session unchanged; duplicates are never an error.
func (s *Server) handleCreateSession(conn *hub.Connection, data []byte) {
	var msg protocol.CreateSessionRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFailure(conn, protocol.EventCreateSession, "invalid create-session payload")
		return
	}

	session, err := s.store.CreateOrGetSession(context.Background(), msg.SessionID, s.resolveUser(conn, msg.UserID))
	if err != nil {
		s.sendFailure(conn, protocol.EventCreateSession, err.Error())
		return
	}
	s.hub.BindSession(conn, session.SessionID)

	s.sendSuccess(conn, protocol.SessionResponse{
		Envelope: s.envelope(protocol.Success(protocol.EventCreateSession)),
		Session:  session,
	})
}

// handleTrainingMessage appends the user's message and a deterministic
// system acknowledgment. This path never calls the agent gateway.
func (s *Server) handleTrainingMessage(conn *hub.Connection, data []byte) {
	var msg protocol.ChatMessageRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFailure(conn, protocol.EventSendTrainingMessage, "invalid send-training-message payload")
		return
	}

	if strings.TrimSpace(msg.Content) == "" {
		s.sendFailure(conn, protocol.EventSendTrainingMessage, "content is required")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = defaultTrainingSession
	}
	userID := s.resolveUser(conn, msg.UserID)
	senderID := msg.SenderID
	if senderID == "" {
		senderID = userID
	}

	ctx := context.Background()
	if _, err := s.store.CreateOrGetSession(ctx, sessionID, userID); err != nil {
		s.sendFailure(conn, protocol.EventSendTrainingMessage, err.Error())
		return
	}
	s.hub.BindSession(conn, sessionID)

	if _, err := s.store.AppendMessage(ctx, sessionID, msg.Content, senderID, domain.RoleUser); err != nil {
		s.sendFailure(conn, protocol.EventSendTrainingMessage, err.Error())
		return
	}

	ack := fmt.Sprintf("Training message received: %q. This is a system acknowledgment.", msg.Content)
	systemMsg, err := s.store.AppendMessage(ctx, sessionID, ack, domain.SenderSystem, domain.RoleSystem)
	if err != nil {
		s.sendFailure(conn, protocol.EventSendTrainingMessage, err.Error())
		return
	}

	s.sendSuccess(conn, s.messageResponse(protocol.EventSendTrainingMessage, systemMsg))
}

// handleChatMessage persists the user's message, calls the agent
// gateway without blocking the read loop, then persists and emits the
// combined reply. A caller that disconnects mid-call simply misses the
// broadcast; nothing is aborted and nothing crashes.
func (s *Server) handleChatMessage(conn *hub.Connection, data []byte) {
	var msg protocol.ChatMessageRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFailure(conn, protocol.EventSendChatMessage, "invalid send-chat-message payload")
		return
	}

	if strings.TrimSpace(msg.Content) == "" {
		s.sendFailure(conn, protocol.EventSendChatMessage, "content is required")
		return
	}
	if msg.SessionID == "" {
		s.sendFailure(conn, protocol.EventSendChatMessage, "session_id is required")
		return
	}
	sessionID := msg.SessionID
	userID := s.resolveUser(conn, msg.UserID)

	ctx := context.Background()
	if _, err := s.store.CreateOrGetSession(ctx, sessionID, userID); err != nil {
		s.sendFailure(conn, protocol.EventSendChatMessage, err.Error())
		return
	}
	s.hub.BindSession(conn, sessionID)

	if _, err := s.store.AppendMessage(ctx, sessionID, msg.Content, userID, domain.RoleUser); err != nil {
		s.sendFailure(conn, protocol.EventSendChatMessage, err.Error())
		return
	}

	// The gateway call is the only operation that suspends; run it off
	// the read loop so other events keep being serviced.
	go func() {
		callCtx, cancel := context.WithTimeout(context.Background(), s.cfg.AgentTimeout)
		defer cancel()

		reply, err := s.gateway.Call(callCtx, sessionID, msg.Content, userID)
		if err != nil {
			log.Printf("Agent call failed for session %s: %v", sessionID, err)
			s.failSession(sessionID, protocol.EventSendChatMessage, err.Error())
			return
		}

		combined := reply.TargetText + " \n " + reply.EnglishText

		// Persist before emitting so the reply is always retrievable
		// via get-chat-history afterwards.
		assistantMsg, err := s.store.AppendMessage(context.Background(), sessionID, combined, domain.SenderAgent, domain.RoleAssistant)
		if err != nil {
			log.Printf("Failed to persist agent reply for session %s: %v", sessionID, err)
			s.failSession(sessionID, protocol.EventSendChatMessage, err.Error())
			return
		}

		resp := s.messageResponse(protocol.EventSendChatMessage, assistantMsg)
		if err := s.hub.BroadcastJSON(sessionID, resp); err != nil {
			log.Printf("Failed to broadcast agent reply: %v", err)
		}
	}()
}

// handleGetHistory returns the ordered message list of a session.
func (s *Server) handleGetHistory(conn *hub.Connection, data []byte) {
	var msg protocol.HistoryRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFailure(conn, protocol.EventGetChatHistory, "invalid get-chat-history payload")
		return
	}
	if msg.SessionID == "" {
		s.sendFailure(conn, protocol.EventGetChatHistory, "session_id is required")
		return
	}

	messages, err := s.store.GetHistory(context.Background(), msg.SessionID)
	if err != nil {
		s.sendFailure(conn, protocol.EventGetChatHistory, err.Error())
		return
	}

	s.sendSuccess(conn, protocol.HistoryResponse{
		Envelope:  s.envelope(protocol.Success(protocol.EventGetChatHistory)),
		Messages:  messages,
		SessionID: msg.SessionID,
	})
}

// handleClearHistory empties a session's message list. The session
// itself survives; only its messages go.
func (s *Server) handleClearHistory(conn *hub.Connection, data []byte) {
	var msg protocol.HistoryRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFailure(conn, protocol.EventClearChatHistory, "invalid clear-chat-history payload")
		return
	}
	if msg.SessionID == "" {
		s.sendFailure(conn, protocol.EventClearChatHistory, "session_id is required")
		return
	}

	cleared, err := s.store.ClearHistory(context.Background(), msg.SessionID)
	if err != nil {
		s.sendFailure(conn, protocol.EventClearChatHistory, err.Error())
		return
	}
	if !cleared {
		notFound := &domain.NotFoundError{SessionID: msg.SessionID}
		s.sendFailure(conn, protocol.EventClearChatHistory, notFound.Error())
		return
	}

	s.sendSuccess(conn, protocol.ClearResponse{
		Envelope:  s.envelope(protocol.Success(protocol.EventClearChatHistory)),
		SessionID: msg.SessionID,
		Cleared:   true,
	})
}

// handleGetStats emits the aggregate store snapshot.
func (s *Server) handleGetStats(conn *hub.Connection, data []byte) {
	stats, err := s.store.Stats(context.Background())
	if err != nil {
		s.sendFailure(conn, protocol.EventGetChatStats, err.Error())
		return
	}

	s.sendSuccess(conn, protocol.StatsResponse{
		Envelope: s.envelope(protocol.Success(protocol.EventGetChatStats)),
		Stats:    *stats,
	})
}

// resolveUser picks the effective user id for an event: the payload's
// explicit id, then the connection's authenticated id, then anonymous.
func (s *Server) resolveUser(conn *hub.Connection, payloadUserID string) string {
	if payloadUserID != "" {
		return payloadUserID
	}
	if conn.UserID != "" {
		return conn.UserID
	}
	return anonymousUser
}

// envelope stamps a response event.
func (s *Server) envelope(eventType string) protocol.Envelope {
	return protocol.Envelope{Type: eventType, Ts: time.Now().UnixMilli()}
}

// messageResponse converts a stored message into the wire success payload.
func (s *Server) messageResponse(event string, msg *domain.Message) protocol.MessageResponse {
	return protocol.MessageResponse{
		Envelope:  s.envelope(protocol.Success(event)),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		SenderID:  msg.SenderID,
		MessageID: msg.MessageID,
		SessionID: msg.SessionID,
		Role:      msg.Role,
	}
}

// sendSuccess emits a success event to one connection.
func (s *Server) sendSuccess(conn *hub.Connection, v interface{}) {
	if err := s.hub.SendJSONToConnection(conn, v); err != nil {
		log.Printf("Failed to send success event: %v", err)
	}
}
