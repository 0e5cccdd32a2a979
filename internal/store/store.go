// Package store owns all session and message records. It is the sole
// mutator of conversation state.
package store

import (
	"context"
	"strings"

	"github.com/Nex2i/Polygloss/internal/domain"
)

// Store defines the interface for session and message persistence.
type Store interface {
	// CreateOrGetSession returns the existing session when sessionID is
	// already present, otherwise creates one. An empty sessionID gets a
	// generated id. Never errors on a duplicate id; reconnect and retry
	// logic on the client side depends on this being safe to call
	// repeatedly.
	CreateOrGetSession(ctx context.Context, sessionID, userID string) (*domain.Session, error)

	// GetSession looks up a session by id.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// AppendMessage validates and appends a message to a session,
	// refreshing the session's updated_at. Content that trims to empty
	// or a session id that does not exist is a ValidationError.
	AppendMessage(ctx context.Context, sessionID, content, senderID string, role domain.Role) (*domain.Message, error)

	// GetHistory returns the session's messages in conversation order.
	// A missing session is a NotFoundError.
	GetHistory(ctx context.Context, sessionID string) ([]domain.Message, error)

	// ClearHistory empties a session's message list. Returns false,
	// not an error, when the session does not exist.
	ClearHistory(ctx context.Context, sessionID string) (bool, error)

	// Stats returns an aggregate snapshot.
	Stats(ctx context.Context) (*domain.Stats, error)

	// Lifecycle
	Close() error
}

// validateAppend checks the append preconditions shared by all
// implementations and returns the trimmed-for-checking content error,
// if any. The stored content keeps its original whitespace.
func validateAppend(sessionID, content string) error {
	if strings.TrimSpace(content) == "" {
		return &domain.ValidationError{Field: "content", Reason: "is required"}
	}
	if sessionID == "" {
		return &domain.ValidationError{Field: "session_id", Reason: "is required"}
	}
	return nil
}
