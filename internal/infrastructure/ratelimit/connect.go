package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/orris-inc/gatewarden/internal/shared/config"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

// NewRedisClient creates the client for the shared counter store.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.GetAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})
}

// Connect pings the store with exponential backoff until it answers or the
// retry budget is spent.
func Connect(ctx context.Context, client redis.UniversalClient, retries uint64, log logger.Interface) error {
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(200*time.Millisecond))
	backoff = retry.WithCappedDuration(5*time.Second, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warnw("redis not reachable yet", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis after %d attempts: %w", attempt, err)
	}

	log.Infow("redis connection established", "attempts", attempt)
	return nil
}
