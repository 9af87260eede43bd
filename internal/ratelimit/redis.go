package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding window on a shared Redis sorted set,
// so the limit holds across gateway instances.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedisLimiter creates a limiter over an existing client.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		prefix: "gateway:ratelimit:",
	}
}

// Allow counts the key's hits inside the window, admitting and recording the
// request while there is room.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-l.cfg.Window)
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	count := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("counting window: %w", err)
	}

	if count.Val() >= int64(l.cfg.Requests) {
		return false, nil
	}

	record := l.client.TxPipeline()
	record.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	record.Expire(ctx, redisKey, l.cfg.Window)
	if _, err := record.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording hit: %w", err)
	}
	return true, nil
}
