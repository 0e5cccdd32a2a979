package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/Nex2i/Polygloss/internal/domain"
)

// tutorPrompt instructs the model to act as the language tutor and to
// answer with the structured two-field document the gateway parses.
const tutorPrompt = `You are a language tutor holding a conversation with a learner. ` +
	`Reply to the learner's latest message in the language they are practicing, ` +
	`then provide an English translation or explanation. ` +
	`Respond ONLY with a JSON object of the form ` +
	`{"provided_language_output": "<reply in the practiced language>", "english_output": "<English translation or explanation>"}.`

// OpenAIClient is a Gateway backed by an OpenAI-compatible chat
// completion API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	history HistoryReader
}

// NewOpenAIClient creates a gateway over the OpenAI API. baseURL may
// point at any OpenAI-compatible endpoint.
func NewOpenAIClient(baseURL, apiKey, model string, history HistoryReader) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		history: history,
	}
}

var _ Gateway = (*OpenAIClient)(nil)

// Call sends the session context as a chat completion request and
// parses the structured reply.
func (c *OpenAIClient) Call(ctx context.Context, sessionID, content, userID string) (*Reply, error) {
	history, err := c.history.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: tutorPrompt},
	}
	for _, msg := range withLatest(buildContext(history), content) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &domain.GatewayError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.BadAgentResponseError{}
	}

	target, english, err := parseReplyContent(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &Reply{
		TargetText:  target,
		EnglishText: english,
		Timestamp:   time.Now().UTC(),
		MessageID:   "agent_" + uuid.New().String(),
	}, nil
}
