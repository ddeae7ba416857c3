package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address       string `mapstructure:"address"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// RedisPublisher publishes each event on "<prefix>:<event type>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, cfg.ChannelPrefix), nil
}

func NewRedisPublisherWithClient(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "blog"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel of an event type.
func (r *RedisPublisher) Channel(eventType string) string {
	return r.prefix + ":" + eventType
}

func (r *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.Channel(event.Type), data).Err()
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
