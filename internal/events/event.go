package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types published by the blog.
const (
	TypePostCreated    = "post.created"
	TypePostUpdated    = "post.updated"
	TypeCommentCreated = "comment.created"
	TypeFollowCreated  = "follow.created"
	TypeFollowDeleted  = "follow.deleted"
)

// Event is a domain change notification.
type Event struct {
	Type      string          `json:"type"`
	Subject   string          `json:"subject"` // id of the entity the event is about
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType, subject string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Subject:   subject,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }
func (Noop) Close() error                          { return nil }

// FollowPayload is carried by follow.created and follow.deleted.
type FollowPayload struct {
	FollowerID string `json:"follower_id"`
	AuthorID   string `json:"author_id"`
}

// Config selects the event bus driver.
type Config struct {
	Driver string      `mapstructure:"driver"` // none, redis, kafka
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// NewPublisher creates the configured publisher.
func NewPublisher(ctx context.Context, cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "redis":
		return NewRedisPublisher(ctx, cfg.Redis)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unsupported events driver: %s", cfg.Driver)
	}
}
