// Package redis implements the queue store on a single Redis sorted
// set. Members are canonical job identities and scores are the due
// time in epoch milliseconds, so duplicate detection rides on the
// set's native member uniqueness.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	q := queue.New(s)
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/autumn-order/bifrost-sub000/queue"
)

// Compile-time interface check.
var _ queue.Store = (*Store)(nil)

// DefaultKey is the sorted-set key holding the queue.
const DefaultKey = "bifrost:worker:queue"

// Option configures the Store.
type Option func(*Store)

// WithKey overrides the sorted-set key. Useful for tests sharing one
// Redis database.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// Store implements the queue store backed by Redis. All operations are
// single Redis commands, so they are atomic without scripting even with
// many producers and consumers on the same set.
type Store struct {
	client goredis.Cmdable
	key    string
}

// New creates a Redis-backed queue store. The caller owns the Redis
// client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, key: DefaultKey}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Add inserts member scored at the given due time. ZADD NX makes the
// duplicate check and the insert one atomic command; an existing member
// keeps its original score.
func (s *Store) Add(ctx context.Context, member string, at time.Time) (bool, error) {
	added, err := s.client.ZAddNX(ctx, s.key, goredis.Z{
		Score:  float64(at.UnixMilli()),
		Member: member,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("bifrost/redis: add: %w", err)
	}
	return added == 1, nil
}

// PopDue claims the entry with the lowest score at or before now. The
// claim is the ZREM: whichever consumer removes the member owns it, so
// concurrent consumers never observe the same entry as claimed. A lost
// race retries with the next candidate.
func (s *Store) PopDue(ctx context.Context, now time.Time) (*queue.Entry, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		zs, err := s.client.ZRangeByScoreWithScores(ctx, s.key, &goredis.ZRangeBy{
			Min:    "-inf",
			Max:    max,
			Offset: 0,
			Count:  1,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("bifrost/redis: pop range: %w", err)
		}
		if len(zs) == 0 {
			return nil, nil
		}

		member, ok := zs[0].Member.(string)
		if !ok {
			return nil, fmt.Errorf("bifrost/redis: pop: unexpected member type %T", zs[0].Member)
		}

		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return nil, fmt.Errorf("bifrost/redis: pop claim: %w", err)
		}
		if removed == 0 {
			// Another consumer claimed it first.
			continue
		}
		return &queue.Entry{
			Member: member,
			At:     time.UnixMilli(int64(zs[0].Score)).UTC(),
		}, nil
	}
}

// RemoveBefore deletes every entry scored at or before cutoff.
func (s *Store) RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	max := strconv.FormatInt(cutoff.UnixMilli(), 10)
	removed, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", max).Result()
	if err != nil {
		return 0, fmt.Errorf("bifrost/redis: remove before: %w", err)
	}
	return removed, nil
}

// Card returns the number of queued entries.
func (s *Store) Card(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("bifrost/redis: card: %w", err)
	}
	return n, nil
}

// Entries returns every entry ordered by score ascending.
func (s *Store) Entries(ctx context.Context) ([]queue.Entry, error) {
	zs, err := s.client.ZRangeWithScores(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("bifrost/redis: entries: %w", err)
	}
	entries := make([]queue.Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("bifrost/redis: entries: unexpected member type %T", z.Member)
		}
		entries = append(entries, queue.Entry{
			Member: member,
			At:     time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return entries, nil
}

// Clear deletes the sorted set.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("bifrost/redis: clear: %w", err)
	}
	return nil
}
