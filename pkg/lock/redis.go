package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const retryInterval = 25 * time.Millisecond

// Redis is a Locker shared by every replica connected to the same Redis.
type Redis struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedis returns a Locker backed by rdb. Held locks expire after ttl so a
// crashed replica cannot block a key forever.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

// Acquire polls Redis until the key is obtained. Without a wait the polling
// is bounded by the lock ttl.
func (r *Redis) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	fullKey := r.prefix + key
	l, err := r.client.Obtain(ctx, fullKey, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	if err == redislock.ErrNotObtained {
		return nil, errors.ConcurrentModification(key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", fullKey, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
				r.logger.Warn().Err(err).Str("key", fullKey).Msg("failed to release lock")
			}
		})
	}, nil
}
