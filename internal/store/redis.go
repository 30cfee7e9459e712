package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// FanoutChannel is the pub/sub channel instances use to share receive events.
const FanoutChannel = "landchat:fanout"

// RedisStore handles Redis operations for rate limiting and cross-instance fan-out.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// PublishFanout broadcasts an encoded event to every subscribed instance.
func (s *RedisStore) PublishFanout(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, FanoutChannel, payload).Err()
}

// SubscribeFanout subscribes to the fan-out channel and waits for the
// subscription to be confirmed.
func (s *RedisStore) SubscribeFanout(ctx context.Context) (*redis.PubSub, error) {
	sub := s.client.Subscribe(ctx, FanoutChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}
