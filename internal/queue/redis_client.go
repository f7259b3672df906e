package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamAPI is the subset of Redis Streams operations the queue uses.
type streamAPI interface {
	Add(ctx context.Context, stream, data string) (string, error)
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]streamEntry, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Pending(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]pendingEntry, error)
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]streamEntry, error)
	Range(ctx context.Context, stream, start, end string, count int64) ([]streamEntry, error)
	Delete(ctx context.Context, stream string, ids ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// streamEntry is one stream record; the job JSON lives in the "data" field.
type streamEntry struct {
	ID   string
	Data string
}

// pendingEntry is a delivered but unacknowledged record.
type pendingEntry struct {
	ID         string
	Consumer   string
	Deliveries int64
}

// redisStreams implements streamAPI over go-redis.
type redisStreams struct {
	client *redis.Client
}

func newRedisStreams(cfg Config) *redisStreams {
	return &redisStreams{client: redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})}
}

func (r *redisStreams) Add(ctx context.Context, stream, data string) (string, error) {
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": data},
	}).Result()
}

// EnsureGroup creates the consumer group, and the stream if needed. An
// existing group is not an error.
func (r *redisStreams) EnsureGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on stream %s: %w", group, stream, err)
	}
	return nil
}

func (r *redisStreams) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]streamEntry, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []streamEntry
	for _, s := range streams {
		entries = append(entries, toEntries(s.Messages)...)
	}
	return entries, nil
}

func (r *redisStreams) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return r.client.XAck(ctx, stream, group, ids...).Err()
}

func (r *redisStreams) Pending(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]pendingEntry, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]pendingEntry, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingEntry{ID: p.ID, Consumer: p.Consumer, Deliveries: p.RetryCount})
	}
	return out, nil
}

func (r *redisStreams) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]streamEntry, error) {
	msgs, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	return toEntries(msgs), nil
}

func (r *redisStreams) Range(ctx context.Context, stream, start, end string, count int64) ([]streamEntry, error) {
	msgs, err := r.client.XRangeN(ctx, stream, start, end, count).Result()
	if err != nil {
		return nil, err
	}
	return toEntries(msgs), nil
}

func (r *redisStreams) Delete(ctx context.Context, stream string, ids ...string) error {
	return r.client.XDel(ctx, stream, ids...).Err()
}

func (r *redisStreams) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisStreams) Close() error {
	return r.client.Close()
}

func toEntries(msgs []redis.XMessage) []streamEntry {
	out := make([]streamEntry, 0, len(msgs))
	for _, m := range msgs {
		data, _ := m.Values["data"].(string)
		out = append(out, streamEntry{ID: m.ID, Data: data})
	}
	return out
}
