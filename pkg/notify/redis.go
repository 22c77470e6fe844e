package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/warden-ai/warden/pkg/escalation"
)

// RedisSink publishes escalations as JSON on a Redis channel, where chat
// bridges and dashboards subscribe.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(addr, password string, db int, channel string) *RedisSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSink{client: rdb, channel: channel}
}

// Publish sends one escalation. Delivery is at-most-once per call; the
// escalation manager retries nothing, so subscribers treat the audit
// trail as the source of truth.
func (s *RedisSink) Publish(ctx context.Context, e *escalation.Escalation) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("notify: marshal escalation: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", s.channel, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
