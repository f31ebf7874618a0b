package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes status events on the EVENT_JOB_STATUS channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a publisher using rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// PublishStatus encodes ev as JSON and publishes it.
func (p *RedisPublisher) PublishStatus(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, EventJobStatus, payload).Err()
}
