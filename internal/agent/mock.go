package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockClient is a deterministic Gateway for development and tests.
// It never leaves the process.
type MockClient struct{}

// NewMockClient creates a new mock gateway.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Gateway = (*MockClient)(nil)

// Call echoes the user's message as the target-language output.
func (m *MockClient) Call(ctx context.Context, sessionID, content, userID string) (*Reply, error) {
	return &Reply{
		TargetText:  content,
		EnglishText: fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", content),
		Timestamp:   time.Now().UTC(),
		MessageID:   "agent_" + uuid.New().String(),
	}, nil
}
