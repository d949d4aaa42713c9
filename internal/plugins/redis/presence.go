package redis

import (
	"context"
	"qrdine/internal/core/contracts"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb:    rdb,
		prefix: "presence:",
	}
}

var _ contracts.PresenceStore = (*RedisPresenceStore)(nil)

func (p *RedisPresenceStore) key(group string) string {
	return p.prefix + group
}

// Touch adds/updates a connection in the group's ZSet with the current timestamp.
func (p *RedisPresenceStore) Touch(
	ctx context.Context,
	group string,
	connID string,
	ttl time.Duration,
) error {
	key := p.key(group)
	pipe := p.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: connID,
	})
	// Set an expiration on the whole ZSet so it doesn't leak memory
	// if every display of the group goes away without a clean close.
	pipe.Expire(ctx, key, ttl*2)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresenceStore) Remove(ctx context.Context, group, connID string) error {
	return p.rdb.ZRem(ctx, p.key(group), connID).Err()
}

// Online returns connections that checked in within ttl, trimming stale ones first.
func (p *RedisPresenceStore) Online(
	ctx context.Context,
	group string,
	ttl time.Duration,
) ([]string, error) {
	key := p.key(group)
	threshold := time.Now().Add(-ttl).Unix()
	if err := p.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(threshold, 10)).Err(); err != nil {
		return nil, err
	}
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}
