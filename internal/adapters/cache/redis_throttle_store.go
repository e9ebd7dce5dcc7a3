package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisThrottleStore implements fixed-window hit counting in Redis, shared
// across service instances. Used for per-IP mint and login throttles.
type RedisThrottleStore struct {
	client *redis.Client
	prefix string
}

func NewRedisThrottleStore(client *redis.Client, prefix string) *RedisThrottleStore {
	if prefix == "" {
		prefix = "store:throttle:"
	}
	return &RedisThrottleStore{client: client, prefix: prefix}
}

func (s *RedisThrottleStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := s.prefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First hit opens the window; NX guards against a racing reset.
		_ = s.client.ExpireNX(ctx, redisKey, window).Err()
	}
	return int(count), nil
}
