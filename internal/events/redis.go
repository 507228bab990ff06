package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/user-management-api/internal/models"
)

// RedisPublisher publishes events on a Redis channel named after the topic.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a publisher. prefix is prepended to every channel name.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel used for topic.
func (p *RedisPublisher) Channel(topic string) string {
	return p.prefix + topic
}

// Publish sends the JSON event to the topic channel. A nil client is a no-op.
func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.Topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Topic, err)
	}
	return nil
}

// DeadLetter is an event that could not be delivered to a sink.
type DeadLetter struct {
	Event    models.Event `json:"event"`
	Sink     string       `json:"sink"`
	Attempts int          `json:"attempts"`
	Error    string       `json:"error,omitempty"`
	FailedAt time.Time    `json:"failed_at"`
}

// DeadLetterStore keeps undeliverable events for later inspection or replay.
type DeadLetterStore interface {
	Push(ctx context.Context, entry DeadLetter) error
}

// RedisDeadLetterStore appends dead letters to a Redis list.
type RedisDeadLetterStore struct {
	client *redis.Client
	key    string
}

// NewRedisDeadLetterStore constructs the store.
func NewRedisDeadLetterStore(client *redis.Client, key string) *RedisDeadLetterStore {
	return &RedisDeadLetterStore{client: client, key: key}
}

// Push prepends entry to the list. A nil client is a no-op.
func (s *RedisDeadLetterStore) Push(ctx context.Context, entry DeadLetter) error {
	if s.client == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", s.key, err)
	}
	return nil
}
