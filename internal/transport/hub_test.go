package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/presence"
	"github.com/eldtechnologies/landchat/internal/store"
)

type testServer struct {
	srv      *httptest.Server
	hub      *Hub
	registry *presence.Registry
	store    *store.SQLiteStore
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	registry := presence.NewRegistry()
	engine := delivery.NewEngine(s, registry, nil, zerolog.Nop(), delivery.Options{})
	hub := NewHub(registry, engine, zerolog.Nop(), opts)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &testServer{srv: srv, hub: hub, registry: registry, store: s}
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/socket"
	if userID != "" {
		url += "?userId=" + userID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, data any) {
	t.Helper()
	frame, err := models.EncodeEvent(models.EventSendMessage, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func readReceive(t *testing.T, conn *websocket.Conn) models.ReceiveEvent {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, models.EventReceiveMessage, env.Event)

	var event models.ReceiveEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	return event
}

func readError(t *testing.T, conn *websocket.Conn) models.ErrorEvent {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, models.EventError, env.Event)

	var event models.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	return event
}

func waitForSessions(t *testing.T, ts *testServer, joined int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ts.registry.Count() == joined
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_MultiDeviceFanOut(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, Options{})

	alicePhone := ts.dial(t, "alice")
	aliceLaptop := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")
	waitForSessions(t, ts, 3)

	sendMessage(t, alicePhone, map[string]string{
		"senderId":   "alice",
		"receiverId": "bob",
		"message":    "hello bob",
	})

	for _, conn := range []*websocket.Conn{alicePhone, aliceLaptop, bob} {
		event := readReceive(t, conn)
		req.Equal("alice", event.SenderID)
		req.Equal("bob", event.ReceiverID)
		req.Equal("hello bob", event.Body)
		req.NotEmpty(event.MessageID)
	}

	latest, err := ts.store.Latest(context.Background(), "bob", "alice")
	req.NoError(err)
	req.Equal("hello bob", latest.Body)
}

func TestHub_AnonymousSessionJoinsNoRoom(t *testing.T) {
	ts := newTestServer(t, Options{})

	ts.dial(t, "")
	require.Eventually(t, func() bool { return ts.hub.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, ts.registry.Count())
}

func TestHub_CloseLeavesRoom(t *testing.T) {
	ts := newTestServer(t, Options{})

	conn := ts.dial(t, "alice")
	waitForSessions(t, ts, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	waitForSessions(t, ts, 0)
	require.Eventually(t, func() bool { return ts.hub.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_MalformedFrame(t *testing.T) {
	ts := newTestServer(t, Options{})

	conn := ts.dial(t, "alice")
	waitForSessions(t, ts, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.Equal(t, CodeBadFrame, readError(t, conn).Code)
}

func TestHub_InvalidMessageNotStored(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, Options{})

	conn := ts.dial(t, "alice")
	waitForSessions(t, ts, 1)

	sendMessage(t, conn, map[string]string{"senderId": "alice", "receiverId": "bob", "message": ""})
	req.Equal(CodeInvalidMessage, readError(t, conn).Code)

	latest, err := ts.store.Latest(context.Background(), "alice", "bob")
	req.NoError(err)
	req.Nil(latest)
}

func TestHub_UnknownEventIgnored(t *testing.T) {
	ts := newTestServer(t, Options{})

	conn := ts.dial(t, "alice")
	waitForSessions(t, ts, 1)

	frame, err := models.EncodeEvent("typing", map[string]string{"to": "bob"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	// The next frame the session sees is the echo of a real send.
	sendMessage(t, conn, map[string]string{"senderId": "alice", "receiverId": "bob", "message": "after"})
	require.Equal(t, "after", readReceive(t, conn).Body)
}

func TestHub_RateLimited(t *testing.T) {
	ts := newTestServer(t, Options{MessagesPerSecond: 0.001, Burst: 1})

	conn := ts.dial(t, "alice")
	waitForSessions(t, ts, 1)

	msg := map[string]string{"senderId": "alice", "receiverId": "bob", "message": "spam"}
	sendMessage(t, conn, msg)
	sendMessage(t, conn, msg)

	require.Equal(t, "spam", readReceive(t, conn).Body)
	require.Equal(t, CodeRateLimited, readError(t, conn).Code)
}

func TestSession_PushAfterClose(t *testing.T) {
	s := newSession("s1", "alice", nil, 1, nil, zerolog.Nop())
	s.open()
	require.Equal(t, StateOpen, s.State())

	require.NoError(t, s.Push([]byte("one")))
	require.ErrorIs(t, s.Push([]byte("two")), ErrSendBufferFull)

	require.True(t, s.close())
	require.False(t, s.close())
	require.Equal(t, StateClosed, s.State())
	require.ErrorIs(t, s.Push([]byte("three")), ErrSessionGone)
}
