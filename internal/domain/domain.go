// Package domain defines the core domain models for the chat backend.
package domain

import "time"

// Role determines how a message is rendered and whether it counts
// toward agent context.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Reserved sender identifiers. Any other sender id is a human user id.
const (
	SenderSystem = "system"
	SenderAgent  = "agent"
)

// Session represents a conversation session. The session id is
// immutable once created; messages are append-only.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message represents a single message in a session. Once appended it
// is never modified.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is an aggregate snapshot of the store. It is a coarse health
// metric, not an exact count under concurrent mutation.
type Stats struct {
	TotalSessions             int     `json:"total_sessions"`
	TotalMessages             int     `json:"total_messages"`
	AverageMessagesPerSession float64 `json:"average_messages_per_session"`
	ActiveSessions            int     `json:"active_sessions"`
}
