package redis

import (
	"context"
	"fmt"
	"qrdine/internal/config"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the client shared by presence and the command stream.
// The first ping is retried a few times since redis often starts after us.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	rdb := redis.NewClient(opts)

	const attempts = 3
	for i := 1; ; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}
		if i == attempts || ctx.Err() != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis after %d attempts: %w", i, err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		}
	}
}
