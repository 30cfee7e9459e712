// Package delivery owns the single path a chat message takes from sender to
// recipient: persist, fan out to live sessions, then notify.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/eldtechnologies/landchat/internal/metrics"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/presence"
	"github.com/eldtechnologies/landchat/internal/store"
)

var (
	ErrValidation     = errors.New("invalid message")
	ErrDeliveryFailed = errors.New("delivery failed")
)

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultNotifyTimeout = 10 * time.Second
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Request is a send as received from a socket event or an HTTP call.
type Request struct {
	SenderID   string      `json:"senderId" validate:"notblank"`
	ReceiverID string      `json:"receiverId" validate:"notblank"`
	Message    string      `json:"message" validate:"notblank"`
	Timestamp  *ClientTime `json:"timestamp,omitempty"`
}

// ClientTime is a send time supplied by the client, either as an RFC 3339
// string or as epoch milliseconds (JavaScript's Date.now()).
type ClientTime struct {
	time.Time
}

func (c *ClientTime) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return c.Time.UnmarshalJSON(data)
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("timestamp must be an RFC 3339 string or epoch milliseconds: %w", err)
	}
	c.Time = time.UnixMilli(ms).UTC()
	return nil
}

// Validate rejects requests that must never reach the store.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// Notifier sends the offline notification for a delivered message.
type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID, body, messageID string) error
}

// Relay forwards receive events to other instances sharing the same rooms.
type Relay interface {
	Publish(ctx context.Context, event models.ReceiveEvent) error
}

// Options tunes collaborator timeouts. Zero values use defaults.
type Options struct {
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
	Relay         Relay
}

// Engine delivers messages. It is safe for concurrent use.
type Engine struct {
	messages      store.MessageStore
	registry      *presence.Registry
	notifier      Notifier
	relay         Relay
	logger        zerolog.Logger
	storeTimeout  time.Duration
	notifyTimeout time.Duration

	inflight sync.WaitGroup
}

// NewEngine creates an engine. notifier may be nil to disable notifications.
func NewEngine(messages store.MessageStore, registry *presence.Registry, notifier Notifier, logger zerolog.Logger, opts Options) *Engine {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	return &Engine{
		messages:      messages,
		registry:      registry,
		notifier:      notifier,
		relay:         opts.Relay,
		logger:        logger.With().Str("component", "delivery").Logger(),
		storeTimeout:  opts.StoreTimeout,
		notifyTimeout: opts.NotifyTimeout,
	}
}

// Deliver persists the message, pushes it to every live session of both
// participants and schedules the recipient's notification. Only validation and
// persistence failures are returned; everything after the write is best-effort.
func (e *Engine) Deliver(ctx context.Context, req Request) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		metrics.DeliveryFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	var ts time.Time
	if req.Timestamp != nil {
		ts = req.Timestamp.Time
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	start := time.Now()
	msg, err := e.messages.AppendMessage(storeCtx, req.SenderID, req.ReceiverID, req.Message, ts)
	metrics.StoreLatency.WithLabelValues("append").Observe(time.Since(start).Seconds())
	cancel()
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("persistence").Inc()
		e.logger.Error().
			Err(err).
			Str("sender_id", req.SenderID).
			Str("receiver_id", req.ReceiverID).
			Msg("failed to persist message")
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	metrics.MessagesDelivered.Inc()

	event := models.NewReceiveEvent(msg)
	e.FanOut(event)
	if e.relay != nil {
		relayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.storeTimeout)
		if err := e.relay.Publish(relayCtx, event); err != nil {
			e.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to relay message")
		}
		cancel()
	}

	e.notifyAsync(*msg)

	return msg, nil
}

// FanOut pushes event to the local sessions of its sender and receiver and
// reports how many pushes landed. Sessions that vanished are skipped.
func (e *Engine) FanOut(event models.ReceiveEvent) (delivered, missed int) {
	payload, err := models.EncodeEvent(models.EventReceiveMessage, event)
	if err != nil {
		e.logger.Error().Err(err).Str("message_id", event.MessageID).Msg("failed to encode receive event")
		return 0, 0
	}

	targets := append(e.registry.SessionsFor(event.SenderID), e.registry.SessionsFor(event.ReceiverID)...)
	targets = lo.UniqBy(targets, func(s presence.Session) string { return s.ID() })

	for _, s := range targets {
		if err := s.Push(payload); err != nil {
			missed++
			e.logger.Debug().
				Err(err).
				Str("session_id", s.ID()).
				Str("message_id", event.MessageID).
				Msg("session missed receive event")
			continue
		}
		delivered++
	}

	metrics.FanoutPushes.WithLabelValues("delivered").Add(float64(delivered))
	metrics.FanoutPushes.WithLabelValues("missed").Add(float64(missed))
	return delivered, missed
}

// notifyAsync runs the notifier detached from the caller's context.
func (e *Engine) notifyAsync(msg models.Message) {
	if e.notifier == nil {
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()

		if err := e.notifier.Notify(ctx, msg.ReceiverID, msg.SenderID, msg.Body, msg.ID); err != nil {
			e.logger.Warn().
				Err(err).
				Str("message_id", msg.ID).
				Str("receiver_id", msg.ReceiverID).
				Msg("notification failed")
		}
	}()
}

// Wait blocks until every scheduled notification has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}
