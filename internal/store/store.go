package store

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/landchat/internal/models"
)

// DefaultPageSize is the number of messages returned per history page.
const DefaultPageSize = 20

// ErrPersistence is returned when the backing database is unreachable or
// rejects a write.
var ErrPersistence = errors.New("persistence failure")

// MessageStore is the append-only record of chat messages.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// AppendMessage persists one message. A zero ts means server time.
	AppendMessage(ctx context.Context, senderID, receiverID, body string, ts time.Time) (*models.Message, error)
	// History returns one page of the conversation between a and b, newest first.
	History(ctx context.Context, a, b string, page, pageSize int) ([]models.Message, error)
	// Latest returns the newest message between a and b, or nil.
	Latest(ctx context.Context, a, b string) (*models.Message, error)
	// ChatSummaries returns the latest message of every sender to recipientID.
	ChatSummaries(ctx context.Context, recipientID string) ([]models.ChatSummary, error)
}

// UserStore resolves user records for notifications and chat lists.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByRole(ctx context.Context, role string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

// DataStore is implemented by both PostgresStore and SQLiteStore.
type DataStore interface {
	MessageStore
	UserStore
}

// newMessage fills in the server-side fields of a message about to be inserted.
func newMessage(senderID, receiverID, body string, ts time.Time) *models.Message {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &models.Message{
		ID:         ulid.Make().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Timestamp:  ts.UTC().Truncate(time.Millisecond),
	}
}

// pageOffset converts a 1-based page into a row offset.
func pageOffset(page, pageSize int) (offset, limit int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize, pageSize
}

// summaryName applies the chat list's fallback for senders without a record.
func summaryName(name string) string {
	if name == "" {
		return "User"
	}
	return name
}
