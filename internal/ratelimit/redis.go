package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darigo/apiserver/config"
	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 5 * time.Second
	keyPrefix   = "darigo:ratelimit:"
)

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisLimiter shares counters between replicas through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
}

func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Hit runs INCR and EXPIRE NX in one transaction so the window is set only
// by the first hit.
func (l *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = keyPrefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit hit %s: %w", key, err)
	}
	return incr.Val(), clampTTL(ttl.Val()), nil
}

func (l *RedisLimiter) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	key = keyPrefix + key
	count, err := l.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("ratelimit count %s: %w", key, err)
	}
	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit ttl %s: %w", key, err)
	}
	return count, clampTTL(ttl), nil
}

// clampTTL maps the negative PTTL sentinels to zero.
func clampTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
