package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"attendly/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token, so a lock
// that expired and was taken by someone else is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisConfig tunes the Redis lock.
type RedisConfig struct {
	Prefix        string
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	Log           *logger.Logger
}

// DefaultRedisConfig returns sensible defaults
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:        "attendly:lock:",
		TTL:           10 * time.Second,
		Wait:          3 * time.Second,
		RetryInterval: 25 * time.Millisecond,
	}
}

// Redis is a distributed lock built on SET NX with a per-holder token.
type Redis struct {
	client  *redis.Client
	config  RedisConfig
	release *redis.Script
}

func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRedisConfig().RetryInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisConfig().TTL
	}
	if cfg.Log == nil {
		cfg.Log = logger.GetDefault()
	}
	return &Redis{
		client:  client,
		config:  cfg,
		release: redis.NewScript(releaseScript),
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Unlock, error) {
	if r.config.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Wait)
		defer cancel()
	}

	lockKey := r.config.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.config.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// Release must run even if the caller's context is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		deleted, err := r.release.Run(releaseCtx, r.client, []string{lockKey}, token).Int()
		switch {
		case err != nil:
			// The key expires after TTL either way.
			r.config.Log.Warn("Failed to release lock",
				slog.String("key", lockKey),
				slog.String("error", err.Error()),
			)
		case deleted == 0:
			r.config.Log.Warn("Lock expired before release",
				slog.String("key", lockKey),
				slog.Duration("ttl", r.config.TTL),
			)
		}
	}, nil
}
