package api

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/landchat/internal/auth"
	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/handlers"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/presence"
	"github.com/eldtechnologies/landchat/internal/store"
)

type testAPI struct {
	router http.Handler
	store  *store.SQLiteStore
	issuer *auth.Issuer
}

func newTestAPI(t *testing.T, adminUserID string) *testAPI {
	t.Helper()

	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	registry := presence.NewRegistry()
	engine := delivery.NewEngine(s, registry, nil, zerolog.Nop(), delivery.Options{})

	router := NewRouter(zerolog.Nop(), RouterConfig{
		Handlers: handlers.Deps{
			Store:       s,
			Sender:      engine,
			Registry:    registry,
			AdminUserID: adminUserID,
			Logger:      zerolog.Nop(),
		},
		Verifier: auth.NewVerifier(pub),
	})

	return &testAPI{router: router, store: s, issuer: auth.NewIssuer(priv, time.Hour)}
}

func (a *testAPI) do(t *testing.T, method, path, body, subject string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if subject != "" {
		token, err := a.issuer.Issue(subject, "")
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestSendMessage(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, "")

	w := a.do(t, http.MethodPost, "/api/v1/messages", `{"senderId":"alice","receiverId":"bob","message":"hi"}`, "alice")
	req.Equal(http.StatusCreated, w.Code)

	msg := decode[models.Message](t, w)
	req.NotEmpty(msg.ID)
	req.Equal("hi", msg.Body)

	latest, err := a.store.Latest(context.Background(), "alice", "bob")
	req.NoError(err)
	req.Equal(msg.ID, latest.ID)
}

func TestSendMessage_EpochMillisTimestamp(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, "")

	w := a.do(t, http.MethodPost, "/api/v1/messages", `{"senderId":"alice","receiverId":"bob","message":"hi","timestamp":1704164645000}`, "alice")
	req.Equal(http.StatusCreated, w.Code)

	msg := decode[models.Message](t, w)
	req.True(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(msg.Timestamp))
}

func TestSendMessage_Errors(t *testing.T) {
	a := newTestAPI(t, "")

	tests := []struct {
		name    string
		body    string
		subject string
		want    int
		errMsg  string
	}{
		{"no token", `{"senderId":"alice","receiverId":"bob","message":"hi"}`, "", http.StatusUnauthorized, "missing bearer token"},
		{"impersonation", `{"senderId":"alice","receiverId":"bob","message":"hi"}`, "mallory", http.StatusForbidden, "senderId does not match authenticated user"},
		{"empty body text", `{"senderId":"alice","receiverId":"bob","message":""}`, "alice", http.StatusBadRequest, "senderId, receiverId and message are required"},
		{"blank body text", `{"senderId":"alice","receiverId":"bob","message":"   "}`, "alice", http.StatusBadRequest, "senderId, receiverId and message are required"},
		{"bad json", `{"senderId":`, "alice", http.StatusBadRequest, "invalid JSON body"},
		{"bad timestamp", `{"senderId":"alice","receiverId":"bob","message":"hi","timestamp":true}`, "alice", http.StatusBadRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/api/v1/messages", tt.body, tt.subject)
			require.Equal(t, tt.want, w.Code)
			require.Equal(t, tt.errMsg, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestGetMessages_Paginates(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, "")
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 25; i++ {
		_, err := a.store.AppendMessage(ctx, "alice", "bob", "m", base.Add(time.Duration(i)*time.Second))
		req.NoError(err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?page=1", 20},
		{"?page=2", 5},
		{"?page=3", 0},
		{"?page=abc", 20},
		{"?page=-4", 20},
	}
	for _, tt := range tests {
		w := a.do(t, http.MethodGet, "/api/v1/messages/bob/alice"+tt.query, "", "")
		req.Equal(http.StatusOK, w.Code, tt.query)
		req.Len(decode[handlers.MessagesResponse](t, w).Messages, tt.want, tt.query)
	}
}

func TestGetLatestMessage(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, "")

	w := a.do(t, http.MethodGet, "/api/v1/messages/latest/alice/bob", "", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"messages":[]}`, w.Body.String())

	_, err := a.store.AppendMessage(context.Background(), "bob", "alice", "newest", time.Time{})
	req.NoError(err)

	w = a.do(t, http.MethodGet, "/api/v1/messages/latest/alice/bob", "", "")
	msgs := decode[handlers.MessagesResponse](t, w).Messages
	req.Len(msgs, 1)
	req.Equal("newest", msgs[0].Body)
}

func TestGetAdminChats(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	a := newTestAPI(t, "")
	w := a.do(t, http.MethodGet, "/api/v1/messages/chats", "", "")
	req.Equal(http.StatusNotFound, w.Code)

	req.NoError(a.store.UpsertUser(ctx, &models.User{ID: "root", Name: "Admin", Role: models.RoleAdmin}))
	req.NoError(a.store.UpsertUser(ctx, &models.User{ID: "alice", Name: "Alice"}))
	_, err := a.store.AppendMessage(ctx, "alice", "root", "help", time.Time{})
	req.NoError(err)

	w = a.do(t, http.MethodGet, "/api/v1/messages/chats", "", "")
	req.Equal(http.StatusOK, w.Code)
	resp := decode[handlers.ChatsResponse](t, w)
	req.Equal("success", resp.Status)
	req.Len(resp.Chats, 1)
	req.Equal("Alice", resp.Chats[0].UserName)
	req.Equal("help", resp.Chats[0].LastMessage)
	req.Zero(resp.Chats[0].UnreadCount)
}

func TestGetAdminChats_ConfiguredID(t *testing.T) {
	a := newTestAPI(t, "ops")
	_, err := a.store.AppendMessage(context.Background(), "carol", "ops", "hello", time.Time{})
	require.NoError(t, err)

	w := a.do(t, http.MethodGet, "/api/v1/messages/chats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.ChatsResponse](t, w)
	require.Len(t, resp.Chats, 1)
	require.Equal(t, "User", resp.Chats[0].UserName)
}

func TestGetChats_Authorization(t *testing.T) {
	a := newTestAPI(t, "")
	_, err := a.store.AppendMessage(context.Background(), "alice", "bob", "hi", time.Time{})
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/v1/messages/chats/bob", "", "").Code)
	require.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/v1/messages/chats/bob", "", "alice").Code)

	w := a.do(t, http.MethodGet, "/api/v1/messages/chats/bob", "", "bob")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[handlers.ChatsResponse](t, w).Chats, 1)
}

func TestGetAdminProfile(t *testing.T) {
	req := require.New(t)
	a := newTestAPI(t, "")

	req.Equal(http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/users/admin", "", "").Code)

	req.NoError(a.store.UpsertUser(context.Background(), &models.User{
		ID: "root", Name: "Admin", Email: "admin@example.com", FCMToken: "secret", Role: models.RoleAdmin,
	}))

	w := a.do(t, http.MethodGet, "/api/v1/users/admin", "", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"success","data":{"id":"root","name":"Admin","email":"admin@example.com","profileImage":""}}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[handlers.HealthResponse](t, w)
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "pass", resp.Checks["database"].Status)
	require.NotContains(t, resp.Checks, "redis")
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, "")
	a.do(t, http.MethodGet, "/health", "", "")

	w := a.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "landchat_http_requests_total")
}
