package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps one expiring key per user so the interval survives
// restarts and is shared between processes.
type RedisLimiter struct {
	client   *redis.Client
	interval time.Duration
	prefix   string
}

// NewRedisLimiter connects to redisURL and checks the connection.
func NewRedisLimiter(redisURL string, interval time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLimiterWithClient(client, interval), nil
}

// NewRedisLimiterWithClient creates a limiter from an existing client.
func NewRedisLimiterWithClient(client *redis.Client, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		interval: interval,
		prefix:   "ratelimit:consult:",
	}
}

func (l *RedisLimiter) key(userID int64) string {
	return l.prefix + strconv.FormatInt(userID, 10)
}

// Allow sets the user's key only if it is absent; the key expires after the
// interval, so its presence means the user has to wait.
func (l *RedisLimiter) Allow(ctx context.Context, userID int64) (bool, time.Duration, error) {
	key := l.key(userID)
	ok, err := l.client.SetNX(ctx, key, time.Now().UnixMilli(), l.interval).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// key without expiry or gone in between; treat as a full interval
		ttl = l.interval
	}
	return false, ttl, nil
}

// Close closes the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
