// Package protocol defines the WebSocket event protocol between
// clients and the chat server. Every request event has a paired
// ":success" and ":failure" response event.
package protocol

import (
	"github.com/Nex2i/Polygloss/internal/domain"
)

// Request event types from client to server.
const (
	EventCreateSession       = "create-session"
	EventSendTrainingMessage = "send-training-message"
	EventSendChatMessage     = "send-chat-message"
	EventGetChatHistory      = "get-chat-history"
	EventClearChatHistory    = "clear-chat-history"
	EventGetChatStats        = "get-chat-stats"
)

// EventError is the response event for frames that cannot be
// attributed to any request event (unparseable JSON, unknown type).
const EventError = "error"

// Success returns the success response event name for a request event.
func Success(event string) string { return event + ":success" }

// Failure returns the failure response event name for a request event.
func Failure(event string) string { return event + ":failure" }

// Envelope contains the fields common to every event frame.
type Envelope struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

// CreateSessionRequest asks for a session, creating it when absent.
type CreateSessionRequest struct {
	Envelope
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ChatMessageRequest carries a user message for the training or chat path.
type ChatMessageRequest struct {
	Envelope
	Content   string `json:"content"`
	SenderID  string `json:"sender_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// HistoryRequest addresses a single session's history.
type HistoryRequest struct {
	Envelope
	SessionID string `json:"session_id"`
}

// StatsRequest has no payload beyond the envelope.
type StatsRequest struct {
	Envelope
}

// SessionResponse is the create-session success payload.
type SessionResponse struct {
	Envelope
	Session *domain.Session `json:"session"`
}

// MessageResponse is the success payload for both message-sending paths.
type MessageResponse struct {
	Envelope
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	SenderID  string      `json:"sender_id"`
	MessageID string      `json:"message_id"`
	SessionID string      `json:"session_id"`
	Role      domain.Role `json:"role"`
}

// HistoryResponse is the get-chat-history success payload.
type HistoryResponse struct {
	Envelope
	Messages  []domain.Message `json:"messages"`
	SessionID string           `json:"session_id"`
}

// ClearResponse is the clear-chat-history success payload.
type ClearResponse struct {
	Envelope
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

// StatsResponse is the get-chat-stats success payload.
type StatsResponse struct {
	Envelope
	domain.Stats
}

// FailureResponse is the payload of every ":failure" event.
type FailureResponse struct {
	Envelope
	Error string `json:"error"`
}
