package chat_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nex2i/Polygloss/internal/agent"
	"github.com/Nex2i/Polygloss/internal/auth"
	"github.com/Nex2i/Polygloss/internal/chat"
	"github.com/Nex2i/Polygloss/internal/config"
	"github.com/Nex2i/Polygloss/internal/domain"
	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/protocol"
	"github.com/Nex2i/Polygloss/internal/store"
)

// stubGateway is a scripted Gateway that records its calls.
type stubGateway struct {
	mu    sync.Mutex
	calls int
	reply *agent.Reply
	err   error
}

func (g *stubGateway) Call(ctx context.Context, sessionID, content, userID string) (*agent.Reply, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	reply := *g.reply
	reply.Timestamp = time.Now().UTC()
	reply.MessageID = "agent_stub"
	return &reply, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	store   *store.MemoryStore
	gateway *stubGateway
	conn    *websocket.Conn
}

// newTestEnv starts a chat server over httptest and dials it.
func newTestEnv(t *testing.T, gw *stubGateway) *testEnv {
	t.Helper()

	cfg := &config.Config{
		AgentTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 65536,
	}

	memStore := store.NewMemoryStore()
	connectionHub := hub.NewHub()
	go connectionHub.Run()

	server := chat.NewServer(cfg, connectionHub, memStore, gw, auth.NewVerifier(""))

	e := echo.New()
	e.GET("/ws", server.HandleWebSocket)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testEnv{store: memStore, gateway: gw, conn: conn}
}

func (env *testEnv) send(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, env.conn.WriteJSON(v))
}

// readEvent reads the next event, failing the test on timeout.
func (env *testEnv) readEvent(t *testing.T) map[string]interface{} {
	t.Helper()
	env.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := env.conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// readUntil reads events until one of the given type arrives.
func (env *testEnv) readUntil(t *testing.T, eventType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		event := env.readEvent(t)
		if event["type"] == eventType {
			return event
		}
	}
	t.Fatalf("never received event %q", eventType)
	return nil
}

func (env *testEnv) createSession(t *testing.T, sessionID, userID string) {
	t.Helper()
	env.send(t, protocol.CreateSessionRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventCreateSession},
		SessionID: sessionID,
		UserID:    userID,
	})
	env.readUntil(t, protocol.Success(protocol.EventCreateSession))
}

func TestCreateSessionIdempotent(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	for i := 0; i < 2; i++ {
		env.send(t, protocol.CreateSessionRequest{
			Envelope:  protocol.Envelope{Type: protocol.EventCreateSession},
			SessionID: "s1",
			UserID:    "u1",
		})
		event := env.readUntil(t, "create-session:success")
		session := event["session"].(map[string]interface{})
		assert.Equal(t, "s1", session["session_id"])
	}

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions, "duplicate create must not grow the store")
}

func TestSendChatMessageFlow(t *testing.T) {
	gw := &stubGateway{reply: &agent.Reply{TargetText: "Hola", EnglishText: "Hello"}}
	env := newTestEnv(t, gw)
	env.createSession(t, "s1", "u1")

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendChatMessage},
		Content:   "Hello",
		SessionID: "s1",
	})

	event := env.readUntil(t, "send-chat-message:success")
	assert.Equal(t, "Hola \n Hello", event["content"])
	assert.Equal(t, string(domain.RoleAssistant), event["role"])
	assert.Equal(t, domain.SenderAgent, event["sender_id"])
	assert.Equal(t, "s1", event["session_id"])

	env.send(t, protocol.HistoryRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventGetChatHistory},
		SessionID: "s1",
	})
	history := env.readUntil(t, "get-chat-history:success")
	messages := history["messages"].([]interface{})
	require.Len(t, messages, 2)

	first := messages[0].(map[string]interface{})
	second := messages[1].(map[string]interface{})
	assert.Equal(t, "Hello", first["content"])
	assert.Equal(t, string(domain.RoleUser), first["role"])
	assert.Equal(t, "Hola \n Hello", second["content"])
	assert.Equal(t, string(domain.RoleAssistant), second["role"])

	assert.Equal(t, 1, gw.callCount())
}

func TestSendChatMessageCreatesSession(t *testing.T) {
	gw := &stubGateway{reply: &agent.Reply{TargetText: "Hola", EnglishText: "Hello"}}
	env := newTestEnv(t, gw)

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendChatMessage},
		Content:   "Hello",
		SessionID: "brand-new",
	})
	env.readUntil(t, "send-chat-message:success")

	history, err := env.store.GetHistory(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSendChatMessageGatewayFailure(t *testing.T) {
	gw := &stubGateway{err: &domain.GatewayError{Err: assert.AnError}}
	env := newTestEnv(t, gw)
	env.createSession(t, "s1", "u1")

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendChatMessage},
		Content:   "Hello",
		SessionID: "s1",
	})

	event := env.readUntil(t, "send-chat-message:failure")
	assert.NotEmpty(t, event["error"])

	// The user's message is persisted; no assistant reply follows.
	history, err := env.store.GetHistory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSendChatMessageValidation(t *testing.T) {
	gw := &stubGateway{reply: &agent.Reply{TargetText: "x", EnglishText: "y"}}
	env := newTestEnv(t, gw)

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendChatMessage},
		Content:   "   ",
		SessionID: "s1",
	})
	event := env.readUntil(t, "send-chat-message:failure")
	assert.Equal(t, "content is required", event["error"])

	env.send(t, protocol.ChatMessageRequest{
		Envelope: protocol.Envelope{Type: protocol.EventSendChatMessage},
		Content:  "Hello",
	})
	event = env.readUntil(t, "send-chat-message:failure")
	assert.Equal(t, "session_id is required", event["error"])

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMessages, "rejected events must not mutate the store")
	assert.Equal(t, 0, gw.callCount())
}

func TestTrainingMessage(t *testing.T) {
	gw := &stubGateway{}
	env := newTestEnv(t, gw)

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendTrainingMessage},
		Content:   "hola",
		SessionID: "train-1",
		UserID:    "u1",
	})

	event := env.readUntil(t, "send-training-message:success")
	assert.Equal(t, `Training message received: "hola". This is a system acknowledgment.`, event["content"])
	assert.Equal(t, string(domain.RoleSystem), event["role"])
	assert.Equal(t, domain.SenderSystem, event["sender_id"])

	history, err := env.store.GetHistory(context.Background(), "train-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "u1", history[0].SenderID)
	assert.Equal(t, domain.RoleSystem, history[1].Role)

	assert.Equal(t, 0, gw.callCount(), "training path must never call the gateway")
}

func TestTrainingMessageDefaults(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	env.send(t, protocol.ChatMessageRequest{
		Envelope: protocol.Envelope{Type: protocol.EventSendTrainingMessage},
		Content:  "practice",
	})
	env.readUntil(t, "send-training-message:success")

	history, err := env.store.GetHistory(context.Background(), "test-session")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "anonymous", history[0].SenderID)
}

func TestGetHistoryNotFound(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	env.send(t, protocol.HistoryRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventGetChatHistory},
		SessionID: "ghost",
	})
	event := env.readUntil(t, "get-chat-history:failure")
	assert.Contains(t, event["error"], "not found")
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendTrainingMessage},
		Content:   "hola",
		SessionID: "s1",
	})
	env.readUntil(t, "send-training-message:success")

	env.send(t, protocol.HistoryRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventClearChatHistory},
		SessionID: "s1",
	})
	event := env.readUntil(t, "clear-chat-history:success")
	assert.Equal(t, true, event["cleared"])
	assert.Equal(t, "s1", event["session_id"])

	env.send(t, protocol.HistoryRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventGetChatHistory},
		SessionID: "s1",
	})
	history := env.readUntil(t, "get-chat-history:success")
	assert.Empty(t, history["messages"])

	env.send(t, protocol.HistoryRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventClearChatHistory},
		SessionID: "ghost",
	})
	failure := env.readUntil(t, "clear-chat-history:failure")
	assert.Contains(t, failure["error"], "not found")
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	env.send(t, protocol.ChatMessageRequest{
		Envelope:  protocol.Envelope{Type: protocol.EventSendTrainingMessage},
		Content:   "hola",
		SessionID: "s1",
	})
	env.readUntil(t, "send-training-message:success")

	env.send(t, protocol.StatsRequest{
		Envelope: protocol.Envelope{Type: protocol.EventGetChatStats},
	})
	event := env.readUntil(t, "get-chat-stats:success")
	assert.Equal(t, float64(1), event["total_sessions"])
	assert.Equal(t, float64(2), event["total_messages"])
	assert.Equal(t, float64(1), event["active_sessions"])
}

func TestUnknownEventType(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	env.send(t, map[string]string{"type": "who-knows"})
	event := env.readUntil(t, "error")
	assert.Contains(t, event["error"], "unknown event type")
}

func TestInvalidJSONFrame(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	require.NoError(t, env.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	event := env.readUntil(t, "error")
	assert.Equal(t, "invalid JSON message", event["error"])

	// The connection survives the bad frame.
	env.send(t, protocol.StatsRequest{
		Envelope: protocol.Envelope{Type: protocol.EventGetChatStats},
	})
	env.readUntil(t, "get-chat-stats:success")
}
