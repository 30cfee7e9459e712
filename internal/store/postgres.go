package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/landchat/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	profile_image TEXT NOT NULL DEFAULT '',
	fcm_token TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'user',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL CHECK (sender_id <> ''),
	receiver_id TEXT NOT NULL CHECK (receiver_id <> ''),
	body TEXT NOT NULL CHECK (body <> ''),
	ts TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, ts DESC);
`

// RunMigrations applies the schema over a dedicated connection.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, postgresSchema)
	return err
}

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendMessage inserts a single message row.
func (s *PostgresStore) AppendMessage(ctx context.Context, senderID, receiverID, body string, ts time.Time) (*models.Message, error) {
	msg := newMessage(senderID, receiverID, body, ts)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, body, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Body, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return msg, nil
}

// History retrieves one page of the conversation between a and b.
func (s *PostgresStore) History(ctx context.Context, a, b string, page, pageSize int) ([]models.Message, error) {
	offset, limit := pageOffset(page, pageSize)

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, ts
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY ts DESC, id DESC
		LIMIT $3 OFFSET $4
	`, a, b, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Timestamp = msg.Timestamp.UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Latest retrieves the newest message between a and b.
func (s *PostgresStore) Latest(ctx context.Context, a, b string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, body, ts
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`, a, b).Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &msg.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

// ChatSummaries returns the newest message from every sender to recipientID.
func (s *PostgresStore) ChatSummaries(ctx context.Context, recipientID string) ([]models.ChatSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.sender_id, m.body, m.ts,
			COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.profile_image, '')
		FROM (
			SELECT DISTINCT ON (sender_id) sender_id, body, ts
			FROM messages
			WHERE receiver_id = $1
			ORDER BY sender_id, ts DESC, id DESC
		) m
		LEFT JOIN users u ON u.id = m.sender_id
		ORDER BY m.ts DESC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	summaries := []models.ChatSummary{}
	for rows.Next() {
		var summary models.ChatSummary
		if err := rows.Scan(
			&summary.UserID,
			&summary.LastMessage,
			&summary.LastMessageTime,
			&summary.UserName,
			&summary.UserEmail,
			&summary.UserImage,
		); err != nil {
			return nil, err
		}
		summary.UserName = summaryName(summary.UserName)
		summary.LastMessageTime = summary.LastMessageTime.UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, profile_image, fcm_token, role, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
}

// GetUserByRole retrieves the oldest user holding role.
func (s *PostgresStore) GetUserByRole(ctx context.Context, role string) (*models.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, profile_image, fcm_token, role, created_at, updated_at
		FROM users WHERE role = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, role)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpsertUser creates or replaces a user record.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	role := user.Role
	if role == "" {
		role = "user"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, profile_image, fcm_token, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			profile_image = EXCLUDED.profile_image,
			fcm_token = EXCLUDED.fcm_token,
			role = EXCLUDED.role,
			updated_at = NOW()
	`, user.ID, user.Name, user.Email, user.ProfileImage, user.FCMToken, role)
	return err
}
