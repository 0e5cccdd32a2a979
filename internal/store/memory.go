package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nex2i/Polygloss/internal/domain"
)

// MemoryStore keeps all sessions and messages in process memory.
// Restarting the process loses all conversation state; there is no
// TTL or eviction, so a long-running process grows without bound.
// Both are accepted limitations of this store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
	}
}

var _ Store = (*MemoryStore)(nil)

// CreateOrGetSession returns the existing session unchanged, or
// creates a new one when the id is unknown or empty.
func (s *MemoryStore) CreateOrGetSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if existing, ok := s.sessions[sessionID]; ok {
			return copySession(existing), nil
		}
	}
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()
	}

	now := time.Now().UTC()
	session := &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = session
	return copySession(session), nil
}

// GetSession looks up a session by id.
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{SessionID: sessionID}
	}
	return copySession(session), nil
}

// AppendMessage appends a message to an existing session.
func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID, content, senderID string, role domain.Role) (*domain.Message, error) {
	if err := validateAppend(sessionID, content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &domain.ValidationError{Field: "session_id", Reason: "does not reference an existing session"}
	}

	msg := domain.Message{
		MessageID: "msg_" + uuid.New().String(),
		SessionID: sessionID,
		Content:   content,
		SenderID:  senderID,
		Role:      role,
		Timestamp: time.Now().UTC(),
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = msg.Timestamp

	out := msg
	return &out, nil
}

// GetHistory returns the session's messages in insertion order.
func (s *MemoryStore) GetHistory(ctx context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{SessionID: sessionID}
	}

	out := make([]domain.Message, len(session.Messages))
	copy(out, session.Messages)
	return out, nil
}

// ClearHistory empties the message list of an existing session. The
// session itself survives.
func (s *MemoryStore) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	session.Messages = []domain.Message{}
	session.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Stats returns an aggregate snapshot. A session counts as active
// when it has at least one message.
func (s *MemoryStore) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.Stats{TotalSessions: len(s.sessions)}
	for _, session := range s.sessions {
		stats.TotalMessages += len(session.Messages)
		if len(session.Messages) > 0 {
			stats.ActiveSessions++
		}
	}
	if stats.TotalSessions > 0 {
		stats.AverageMessagesPerSession = float64(stats.TotalMessages) / float64(stats.TotalSessions)
	}
	return stats, nil
}

// Close releases nothing; it exists to satisfy the Store interface.
func (s *MemoryStore) Close() error { return nil }

// copySession returns a detached copy so callers cannot mutate stored
// state behind the store's back.
func copySession(session *domain.Session) *domain.Session {
	out := *session
	out.Messages = make([]domain.Message, len(session.Messages))
	copy(out.Messages, session.Messages)
	return &out
}
