// Package notify turns a delivered message into a push notification for its
// recipient.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/metrics"
	"github.com/eldtechnologies/landchat/internal/models"
)

// DefaultFallbackTitle is used when the sender has no display name.
const DefaultFallbackTitle = "رسالة جديدة 📩"

const (
	maxPreviewRunes    = 50
	fallbackSenderName = "User"
)

// ErrNotification is returned when the push gateway rejects or fails a send.
var ErrNotification = errors.New("notification failed")

// UserLookup resolves user records. A missing user is (nil, nil).
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Payload is the gateway-neutral notification content.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushGateway delivers a payload to a single device token and returns the
// gateway's message id.
type PushGateway interface {
	Send(ctx context.Context, token string, p Payload) (string, error)
}

// Dispatcher builds notification payloads and hands them to a gateway.
type Dispatcher struct {
	users         UserLookup
	gateway       PushGateway
	fallbackTitle string
	logger        zerolog.Logger
}

// NewDispatcher creates a dispatcher. An empty fallbackTitle uses DefaultFallbackTitle.
func NewDispatcher(users UserLookup, gateway PushGateway, fallbackTitle string, logger zerolog.Logger) *Dispatcher {
	if fallbackTitle == "" {
		fallbackTitle = DefaultFallbackTitle
	}
	return &Dispatcher{
		users:         users,
		gateway:       gateway,
		fallbackTitle: fallbackTitle,
		logger:        logger.With().Str("component", "notify").Logger(),
	}
}

// Notify sends the new-message notification to recipientID. Recipients without
// a record or a device token are skipped silently.
func (d *Dispatcher) Notify(ctx context.Context, recipientID, senderID, body, messageID string) error {
	recipient, err := d.users.GetUser(ctx, recipientID)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: recipient lookup: %w", ErrNotification, err)
	}
	if recipient == nil || recipient.FCMToken == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		d.logger.Debug().Str("recipient_id", recipientID).Msg("no push token, skipping notification")
		return nil
	}

	sender, err := d.users.GetUser(ctx, senderID)
	if err != nil {
		d.logger.Warn().Err(err).Str("sender_id", senderID).Msg("sender lookup failed, using defaults")
	}

	payload := d.buildPayload(sender, recipientID, senderID, body, messageID)

	id, err := d.gateway.Send(ctx, recipient.FCMToken, payload)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}

	metrics.Notifications.WithLabelValues("sent").Inc()
	d.logger.Debug().
		Str("recipient_id", recipientID).
		Str("message_id", messageID).
		Str("gateway_id", id).
		Msg("notification sent")
	return nil
}

func (d *Dispatcher) buildPayload(sender *models.User, recipientID, senderID, body, messageID string) Payload {
	title := d.fallbackTitle
	senderName := fallbackSenderName
	senderEmail := ""
	if sender != nil {
		if sender.Name != "" {
			title = sender.Name
			senderName = sender.Name
		}
		senderEmail = sender.Email
	}

	return Payload{
		Title: title,
		Body:  Truncate(body, maxPreviewRunes),
		Data: map[string]string{
			"type":        "new_message",
			"senderId":    senderID,
			"receiverId":  recipientID,
			"messageId":   messageID,
			"senderName":  senderName,
			"senderEmail": senderEmail,
		},
	}
}

// Truncate shortens s to limit runes and appends "..." when anything was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
