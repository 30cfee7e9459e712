package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/landchat/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLite_AppendMessage(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	msg, err := s.AppendMessage(ctx, "alice", "bob", "hello", time.Time{})
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.Equal("alice", msg.SenderID)
	req.Equal("bob", msg.ReceiverID)
	req.Equal("hello", msg.Body)
	req.WithinDuration(time.Now(), msg.Timestamp, 5*time.Second)

	latest, err := s.Latest(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal(msg, latest)
}

func TestSQLite_AppendMessage_ClientTimestamp(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := s.AppendMessage(context.Background(), "alice", "bob", "backdated", at)
	req.NoError(err)
	req.True(at.Equal(msg.Timestamp))
}

func TestSQLite_AppendMessage_RejectsEmptyBody(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.AppendMessage(context.Background(), "alice", "bob", "", time.Time{})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestSQLite_History_Symmetric(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	_, err := s.AppendMessage(ctx, "alice", "bob", "one", base)
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "bob", "alice", "two", base.Add(time.Minute))
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "alice", "carol", "elsewhere", base.Add(2*time.Minute))
	req.NoError(err)

	ab, err := s.History(ctx, "alice", "bob", 1, DefaultPageSize)
	req.NoError(err)
	ba, err := s.History(ctx, "bob", "alice", 1, DefaultPageSize)
	req.NoError(err)

	req.Len(ab, 2)
	req.Equal(ab, ba)
	req.Equal("two", ab[0].Body)
	req.Equal("one", ab[1].Body)
}

func TestSQLite_History_Pagination(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 25; i++ {
		_, err := s.AppendMessage(ctx, "alice", "bob", fmt.Sprintf("msg-%02d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(err)
	}

	first, err := s.History(ctx, "alice", "bob", 1, DefaultPageSize)
	req.NoError(err)
	req.Len(first, 20)
	req.Equal("msg-24", first[0].Body)
	req.Equal("msg-05", first[19].Body)

	second, err := s.History(ctx, "alice", "bob", 2, DefaultPageSize)
	req.NoError(err)
	req.Len(second, 5)
	req.Equal("msg-04", second[0].Body)
	req.Equal("msg-00", second[4].Body)

	third, err := s.History(ctx, "alice", "bob", 3, DefaultPageSize)
	req.NoError(err)
	req.Empty(third)

	// Page numbers below 1 fall back to the first page.
	zero, err := s.History(ctx, "alice", "bob", 0, DefaultPageSize)
	req.NoError(err)
	req.Equal(first, zero)
}

func TestSQLite_Latest_Empty(t *testing.T) {
	s := newTestSQLiteStore(t)

	msg, err := s.Latest(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestSQLite_ChatSummaries(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	req.NoError(s.UpsertUser(ctx, &models.User{ID: "alice", Name: "Alice", Email: "alice@example.com"}))

	_, err := s.AppendMessage(ctx, "alice", "admin", "a1", base)
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "carol", "admin", "c1", base.Add(time.Minute))
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "alice", "admin", "a2", base.Add(2*time.Minute))
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "admin", "alice", "reply", base.Add(3*time.Minute))
	req.NoError(err)

	summaries, err := s.ChatSummaries(ctx, "admin")
	req.NoError(err)
	req.Len(summaries, 2)

	req.Equal("alice", summaries[0].UserID)
	req.Equal("Alice", summaries[0].UserName)
	req.Equal("alice@example.com", summaries[0].UserEmail)
	req.Equal("a2", summaries[0].LastMessage)
	req.Zero(summaries[0].UnreadCount)

	req.Equal("carol", summaries[1].UserID)
	req.Equal("User", summaries[1].UserName)
	req.Equal("c1", summaries[1].LastMessage)
}

func TestSQLite_ChatSummaries_Empty(t *testing.T) {
	s := newTestSQLiteStore(t)

	summaries, err := s.ChatSummaries(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, summaries)
	require.Empty(t, summaries)
}

func TestSQLite_Users(t *testing.T) {
	req := require.New(t)
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	missing, err := s.GetUser(ctx, "ghost")
	req.NoError(err)
	req.Nil(missing)

	req.NoError(s.UpsertUser(ctx, &models.User{ID: "bob", Name: "Bob", FCMToken: "tok-1"}))
	req.NoError(s.UpsertUser(ctx, &models.User{ID: "bob", Name: "Bobby", FCMToken: "tok-2"}))
	req.NoError(s.UpsertUser(ctx, &models.User{ID: "root", Name: "Admin", Role: models.RoleAdmin}))

	bob, err := s.GetUser(ctx, "bob")
	req.NoError(err)
	req.Equal("Bobby", bob.Name)
	req.Equal("tok-2", bob.FCMToken)
	req.Equal("user", bob.Role)

	admin, err := s.GetUserByRole(ctx, models.RoleAdmin)
	req.NoError(err)
	req.Equal("root", admin.ID)

	none, err := s.GetUserByRole(ctx, "auditor")
	req.NoError(err)
	req.Nil(none)
}
