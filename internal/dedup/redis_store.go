package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore tracks event ids in Redis with a TTL so the working set stays
// bounded; entries older than the bus redelivery window are irrelevant.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("empty event id")
	}
	n, err := s.client.Exists(ctx, s.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("empty event id")
	}
	if err := s.client.Set(ctx, s.prefix+eventID, 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
