package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a fixed-window rate limiter backed by Redis, for
// deployments where several processes must share one budget per client.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter connects to Redis and returns a shared-state limiter
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLimiter{client: client, limit: limit, window: window}, nil
}

// Allow increments the client's window counter and admits the request while
// the counter stays within the limit. The expiry is set when the counter is
// created so the window resets itself.
func (rl *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, time.Now().Unix()/int64(rl.window.Seconds()))

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, fmt.Errorf("failed to expire rate counter: %w", err)
		}
	}

	return count <= int64(rl.limit), nil
}

// Close releases the Redis connection
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}
