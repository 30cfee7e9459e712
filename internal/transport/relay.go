package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/metrics"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/store"
)

type relayMessage struct {
	Origin string              `json:"origin"`
	Event  models.ReceiveEvent `json:"event"`
}

// RedisRelay shares receive events between instances so sessions of the same
// identity connected to different processes all see every message.
type RedisRelay struct {
	redis      *store.RedisStore
	instanceID string
	logger     zerolog.Logger
}

// NewRedisRelay creates a relay with a fresh instance id.
func NewRedisRelay(redis *store.RedisStore, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		redis:      redis,
		instanceID: uuid.NewString(),
		logger:     logger.With().Str("component", "relay").Logger(),
	}
}

// InstanceID identifies this process on the fan-out channel.
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

// Publish sends event to every other instance.
func (r *RedisRelay) Publish(ctx context.Context, event models.ReceiveEvent) error {
	payload, err := json.Marshal(relayMessage{Origin: r.instanceID, Event: event})
	if err != nil {
		return err
	}

	start := time.Now()
	err = r.redis.PublishFanout(ctx, payload)
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	return err
}

// Start subscribes to the fan-out channel and calls fanout for every event
// published by another instance until ctx is cancelled. It returns once the
// subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context, fanout func(models.ReceiveEvent)) error {
	sub, err := r.redis.SubscribeFanout(ctx)
	if err != nil {
		return err
	}

	go func() {
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var rm relayMessage
				if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
					r.logger.Warn().Err(err).Msg("dropping malformed relay message")
					continue
				}
				if rm.Origin == r.instanceID {
					continue
				}
				fanout(rm.Event)
			}
		}
	}()

	return nil
}
