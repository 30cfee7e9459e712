package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/landchat/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/landchat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/landchat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		fcm_token TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL CHECK (sender_id <> ''),
		receiver_id TEXT NOT NULL CHECK (receiver_id <> ''),
		body TEXT NOT NULL CHECK (body <> ''),
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, ts);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage inserts a single message row.
func (s *SQLiteStore) AppendMessage(ctx context.Context, senderID, receiverID, body string, ts time.Time) (*models.Message, error) {
	msg := newMessage(senderID, receiverID, body, ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, body, ts)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Body, msg.Timestamp.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return msg, nil
}

// History retrieves one page of the conversation between a and b.
func (s *SQLiteStore) History(ctx context.Context, a, b string, page, pageSize int) ([]models.Message, error) {
	offset, limit := pageOffset(page, pageSize)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, ts
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY ts DESC, id DESC
		LIMIT ? OFFSET ?
	`, a, b, b, a, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// Latest retrieves the newest message between a and b.
func (s *SQLiteStore) Latest(ctx context.Context, a, b string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, body, ts
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`, a, b, b, a)

	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return msg, nil
}

// ChatSummaries returns the newest message from every sender to recipientID.
func (s *SQLiteStore) ChatSummaries(ctx context.Context, recipientID string) ([]models.ChatSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.sender_id, m.body, m.ts,
			COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.profile_image, '')
		FROM (
			SELECT sender_id, body, ts,
				ROW_NUMBER() OVER (PARTITION BY sender_id ORDER BY ts DESC, id DESC) AS rn
			FROM messages
			WHERE receiver_id = ?
		) m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.rn = 1
		ORDER BY m.ts DESC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	summaries := []models.ChatSummary{}
	for rows.Next() {
		var summary models.ChatSummary
		var ts int64
		if err := rows.Scan(
			&summary.UserID,
			&summary.LastMessage,
			&ts,
			&summary.UserName,
			&summary.UserEmail,
			&summary.UserImage,
		); err != nil {
			return nil, err
		}
		summary.UserName = summaryName(summary.UserName)
		summary.LastMessageTime = time.UnixMilli(ts).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, profile_image, fcm_token, role, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
}

// GetUserByRole retrieves the oldest user holding role.
func (s *SQLiteStore) GetUserByRole(ctx context.Context, role string) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, profile_image, fcm_token, role, created_at, updated_at
		FROM users WHERE role = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, role)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.ProfileImage,
		&user.FCMToken,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpsertUser creates or replaces a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	role := user.Role
	if role == "" {
		role = "user"
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, profile_image, fcm_token, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			profile_image = excluded.profile_image,
			fcm_token = excluded.fcm_token,
			role = excluded.role,
			updated_at = excluded.updated_at
	`, user.ID, user.Name, user.Email, user.ProfileImage, user.FCMToken, role, now, now)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var ts int64
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &ts); err != nil {
		return nil, err
	}
	msg.Timestamp = time.UnixMilli(ts).UTC()
	return &msg, nil
}
