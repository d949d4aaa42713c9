package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"qrdine/internal/core/contracts"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const readCount = 10

// QueueOptions tunes the consumer side. Consumer must stay the same across
// restarts of one worker so its pending entries are found again.
type QueueOptions struct {
	MaxLen       int64
	Consumer     string
	ClaimMinIdle time.Duration
	Block        time.Duration
}

type RedisCommandQueue struct {
	rdb  *redis.Client
	log  *slog.Logger
	opts QueueOptions
}

func NewRedisCommandQueue(log *slog.Logger, rdb *redis.Client, opts QueueOptions) *RedisCommandQueue {
	if opts.Consumer == "" {
		opts.Consumer = "order-event-worker"
	}
	if opts.Block <= 0 {
		opts.Block = 2 * time.Second
	}
	return &RedisCommandQueue{rdb: rdb, log: log, opts: opts}
}

var _ contracts.CommandQueue = (*RedisCommandQueue)(nil)

func (q *RedisCommandQueue) Publish(ctx context.Context, stream string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.opts.MaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

// Subscribe blocks until ctx is done. Each round first takes over entries that
// have sat unacknowledged for ClaimMinIdle, from any consumer in the group, and
// then reads new entries. A handler error leaves the entry pending, so it comes
// back through the claim step.
func (q *RedisCommandQueue) Subscribe(
	ctx context.Context,
	stream string,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	err := q.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	q.log.InfoContext(ctx, "queue - subscribe - consuming", "stream", stream, "group", group, "consumer", q.opts.Consumer)
	cursor := "0-0"
	for {
		if ctx.Err() != nil {
			return nil
		}
		if q.opts.ClaimMinIdle > 0 {
			msgs, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   stream,
				Group:    group,
				Consumer: q.opts.Consumer,
				MinIdle:  q.opts.ClaimMinIdle,
				Start:    cursor,
				Count:    readCount,
			}).Result()
			switch {
			case err == nil:
				cursor = next
				if len(msgs) > 0 {
					q.log.WarnContext(ctx, "queue - subscribe - reclaimed pending", "stream", stream, "count", len(msgs))
				}
				q.dispatch(ctx, stream, group, msgs, handler)
			case ctx.Err() != nil:
				return nil
			default:
				cursor = "0-0"
				q.log.ErrorContext(ctx, "queue - subscribe - pending claim failed", "stream", stream, "err", err)
			}
		}

		res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: q.opts.Consumer,
			Streams:  []string{stream, ">"},
			Count:    readCount,
			Block:    q.opts.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.log.ErrorContext(ctx, "queue - subscribe - stream read failed", "stream", stream, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range res {
			q.dispatch(ctx, stream, group, s.Messages, handler)
		}
	}
}

func (q *RedisCommandQueue) dispatch(
	ctx context.Context,
	stream, group string,
	msgs []redis.XMessage,
	handler func(ctx context.Context, messageID string, data []byte) error,
) {
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			// nothing to hand over; ack so it is not claimed forever
			q.log.WarnContext(ctx, "queue - subscribe - entry without data", "stream", stream, "message_id", msg.ID)
			if err := q.Acknowledge(ctx, stream, group, msg.ID); err != nil {
				q.log.ErrorContext(ctx, "queue - subscribe - acknowledge failed", "stream", stream, "message_id", msg.ID, "err", err)
			}
			continue
		}
		if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
			q.log.ErrorContext(ctx, "queue - subscribe - handler failed", "stream", stream, "message_id", msg.ID, "err", err)
		}
	}
}

func (q *RedisCommandQueue) Acknowledge(ctx context.Context, stream, group, messageID string) error {
	return q.rdb.XAck(ctx, stream, group, messageID).Err()
}

func (q *RedisCommandQueue) Delete(ctx context.Context, stream, messageID string) error {
	return q.rdb.XDel(ctx, stream, messageID).Err()
}
