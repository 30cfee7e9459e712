package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// FCMGateway sends notifications through Firebase Cloud Messaging.
type FCMGateway struct {
	client *messaging.Client
}

// NewFCMGateway initializes a Firebase app from a service account file.
func NewFCMGateway(ctx context.Context, credentialsFile string) (*FCMGateway, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}

	return &FCMGateway{client: client}, nil
}

// Send delivers p to a single device token.
func (g *FCMGateway) Send(ctx context.Context, token string, p Payload) (string, error) {
	return g.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
	})
}

// LogGateway logs notifications instead of sending them. Used when no Firebase
// credentials are configured.
type LogGateway struct {
	logger zerolog.Logger
}

func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With().Str("component", "push").Logger()}
}

func (g *LogGateway) Send(ctx context.Context, token string, p Payload) (string, error) {
	g.logger.Info().
		Str("title", p.Title).
		Str("body", p.Body).
		Str("message_id", p.Data["messageId"]).
		Msg("push notification (log only)")
	return "log-" + p.Data["messageId"], nil
}
