package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nex2i/Polygloss/internal/domain"
)

// Client is an HTTP gateway to an external conversational-agent service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	history    HistoryReader
}

// NewClient creates a new agent HTTP client.
func NewClient(baseURL string, timeout time.Duration, history HistoryReader) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		history: history,
	}
}

var _ Gateway = (*Client)(nil)

// converseRequest is the request body for POST /v1/converse.
type converseRequest struct {
	SessionID string           `json:"session_id"`
	UserID    string           `json:"user_id,omitempty"`
	Messages  []contextMessage `json:"messages,omitempty"`
	Message   contextMessage   `json:"message"`
}

// converseResponse is the agent service's reply. Content is itself a
// JSON document carrying the two output fields.
type converseResponse struct {
	Content  string `json:"content"`
	Metadata struct {
		Timestamp time.Time `json:"timestamp"`
		MessageID string    `json:"message_id"`
	} `json:"metadata"`
}

// errorResponse is an error body from the agent service.
type errorResponse struct {
	Error string `json:"error"`
}

// Call invokes POST /v1/converse on the agent service.
func (c *Client) Call(ctx context.Context, sessionID, content, userID string) (*Reply, error) {
	history, err := c.history.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := converseRequest{
		SessionID: sessionID,
		UserID:    userID,
		Messages:  withLatest(buildContext(history), content),
		Message:   contextMessage{Role: string(domain.RoleUser), Content: content},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal converse request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/converse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &domain.GatewayError{Err: fmt.Errorf("agent service error: %s", errResp.Error)}
		}
		return nil, &domain.GatewayError{Err: fmt.Errorf("agent service returned status %d", resp.StatusCode)}
	}

	var converseResp converseResponse
	if err := json.NewDecoder(resp.Body).Decode(&converseResp); err != nil {
		return nil, &domain.BadAgentResponseError{Err: err}
	}

	target, english, err := parseReplyContent(converseResp.Content)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		TargetText:  target,
		EnglishText: english,
		Timestamp:   converseResp.Metadata.Timestamp,
		MessageID:   converseResp.Metadata.MessageID,
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}
	if reply.MessageID == "" {
		reply.MessageID = "agent_" + uuid.New().String()
	}
	return reply, nil
}
