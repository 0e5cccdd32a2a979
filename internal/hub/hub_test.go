package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	return h
}

func TestHubRegisterUnregister(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "u1")

	h.Register(conn)
	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	h.Unregister(conn)
	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 0
	}, time.Second, 10*time.Millisecond)

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok, "send channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHubBroadcastReachesSessionOnly(t *testing.T) {
	h := startHub(t)

	a := h.NewConnection(nil, "u1")
	b := h.NewConnection(nil, "u2")
	other := h.NewConnection(nil, "u3")
	for _, conn := range []*Connection{a, b, other} {
		h.Register(conn)
	}
	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 3
	}, time.Second, 10*time.Millisecond)

	h.BindSession(a, "s1")
	h.BindSession(b, "s1")
	h.BindSession(other, "s2")
	assert.Equal(t, 2, h.SessionCount())

	require.NoError(t, h.BroadcastJSON("s1", map[string]string{"type": "ping"}))

	for _, conn := range []*Connection{a, b} {
		select {
		case data := <-conn.Send:
			assert.Contains(t, string(data), "ping")
		case <-time.After(time.Second):
			t.Fatal("broadcast did not reach a session member")
		}
	}

	select {
	case <-other.Send:
		t.Fatal("broadcast leaked to another session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastUnknownSessionDropped(t *testing.T) {
	h := startHub(t)

	conn := h.NewConnection(nil, "u1")
	h.Register(conn)
	h.BindSession(conn, "s1")

	// Nothing listens on "ghost"; the message is silently dropped.
	h.Broadcast("ghost", []byte("lost"))

	select {
	case <-conn.Send:
		t.Fatal("message for an unknown session was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBindSessionRebind(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "u1")
	h.Register(conn)
	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	h.BindSession(conn, "s1")
	h.BindSession(conn, "s1") // no-op
	assert.Equal(t, 1, h.SessionCount())

	h.BindSession(conn, "s2")
	assert.Equal(t, "s2", conn.SessionID)
	assert.Equal(t, 1, h.SessionCount(), "old session must be cleaned up")
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h := NewHub()
	conn := h.NewConnection(nil, "u1")

	for i := 0; i < cap(conn.Send); i++ {
		require.NoError(t, h.SendToConnection(conn, []byte("x")))
	}

	err := h.SendToConnection(conn, []byte("overflow"))
	assert.ErrorIs(t, err, ErrBufferFull)
}
