// Package agent provides the gateway to the external conversational
// agent. A gateway call is stateless but context-aware: it carries the
// session's stored history plus the newest user message.
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Nex2i/Polygloss/internal/domain"
)

// Gateway defines the interface for conversational-agent calls.
type Gateway interface {
	// Call sends the session context plus the new user message and
	// returns the parsed reply. A failed external call is a
	// GatewayError; a reply that cannot be parsed into the expected
	// two-field structure is a BadAgentResponseError. There is no
	// automatic retry.
	Call(ctx context.Context, sessionID, content, userID string) (*Reply, error)
}

// HistoryReader is the slice of the store the gateway needs to build
// agent context.
type HistoryReader interface {
	GetHistory(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// Reply is the parsed two-part agent response: a rendering in the
// language being learned and an accompanying English explanation.
type Reply struct {
	TargetText  string
	EnglishText string
	Timestamp   time.Time
	MessageID   string
}

// replyPayload is the structured document the agent is expected to
// produce as its message content.
type replyPayload struct {
	ProvidedLanguageOutput *string `json:"provided_language_output"`
	EnglishOutput          *string `json:"english_output"`
}

// parseReplyContent parses the agent's raw message content into the
// two named text fields. Both fields must be present.
func parseReplyContent(raw string) (target, english string, err error) {
	var payload replyPayload
	if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr != nil {
		return "", "", &domain.BadAgentResponseError{Raw: raw, Err: jsonErr}
	}
	if payload.ProvidedLanguageOutput == nil || payload.EnglishOutput == nil {
		return "", "", &domain.BadAgentResponseError{Raw: raw}
	}
	return *payload.ProvidedLanguageOutput, *payload.EnglishOutput, nil
}

// contextMessage is the role-tagged history entry sent to the agent.
type contextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// withLatest appends the newest user message unless the stored
// history already ends with it. The coordinator persists the user
// message before calling the gateway, so the usual case is a no-op.
func withLatest(messages []contextMessage, content string) []contextMessage {
	if n := len(messages); n > 0 && messages[n-1].Role == string(domain.RoleUser) && messages[n-1].Content == content {
		return messages
	}
	return append(messages, contextMessage{Role: string(domain.RoleUser), Content: content})
}

// buildContext converts stored history into the agent's request shape.
// System messages are the training path's acknowledgments and do not
// count toward agent context.
func buildContext(history []domain.Message) []contextMessage {
	messages := make([]contextMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == domain.RoleSystem {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, contextMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return messages
}
