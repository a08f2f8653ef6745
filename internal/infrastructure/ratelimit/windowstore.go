package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
)

const defaultStoreTimeout = 250 * time.Millisecond

// recordScript trims, records, counts and refreshes expiry for one bucket in a
// single atomic step. Counting after the insert removes the check-then-act race
// between gateway instances.
//
// KEYS[1] bucket key
// ARGV[1] exclusive lower score bound, "(" .. (now - window)
// ARGV[2] now in unix milliseconds (entry score)
// ARGV[3] unique entry member
// ARGV[4] window in milliseconds (bucket TTL)
// ARGV[5] max admissible count
//
// Returns {totalHits, releaseScore}; releaseScore is -1 when the bucket is not
// over max or the entry does not exist.
var recordScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
redis.call('ZADD', key, ARGV[2], ARGV[3])
local count = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, ARGV[4])

local max = tonumber(ARGV[5])
local release = -1
if count > max then
	local rank = count - max
	local entry = redis.call('ZRANGE', key, rank, rank, 'WITHSCORES')
	if entry[2] then
		release = tonumber(entry[2])
	end
end
return {count, release}
`)

// RedisWindowStore is the sliding-window store shared by every gateway
// instance. Each bucket is a sorted set of entries scored by their timestamp.
type RedisWindowStore struct {
	client  redis.UniversalClient
	timeout time.Duration
	newID   func() string
}

type StoreOption func(*RedisWindowStore)

// WithTimeout bounds every store call. A timeout surfaces as ErrStoreUnavailable.
func WithTimeout(d time.Duration) StoreOption {
	return func(s *RedisWindowStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEntryIDs overrides the entry member generator.
func WithEntryIDs(fn func() string) StoreOption {
	return func(s *RedisWindowStore) { s.newID = fn }
}

func NewRedisWindowStore(client redis.UniversalClient, opts ...StoreOption) *RedisWindowStore {
	s := &RedisWindowStore{
		client:  client,
		timeout: defaultStoreTimeout,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAndCount implements domain.WindowStore.
func (s *RedisWindowStore) RecordAndCount(ctx context.Context, key domain.Key, now time.Time, window time.Duration, limit int) (domain.WindowCount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	res, err := recordScript.Run(ctx, s.client, []string{key.String()},
		"("+strconv.FormatInt(nowMs-windowMs, 10),
		nowMs,
		s.newID(),
		windowMs,
		limit,
	).Int64Slice()
	if err != nil {
		return domain.WindowCount{}, &domain.StoreUnavailableError{Key: key, Err: err}
	}
	if len(res) != 2 {
		return domain.WindowCount{}, &domain.StoreUnavailableError{Key: key, Err: errors.New("unexpected script reply")}
	}

	out := domain.WindowCount{TotalHits: res[0]}
	if res[1] >= 0 {
		out.ReleaseAt = time.UnixMilli(res[1])
	}
	return out, nil
}

// Count implements domain.WindowStore. Expired entries are ignored, not trimmed.
func (s *RedisWindowStore) Count(ctx context.Context, key domain.Key, now time.Time, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	floor := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, key.String(), floor, "+inf").Result()
	if err != nil {
		return 0, &domain.StoreUnavailableError{Key: key, Err: err}
	}
	return n, nil
}

// Reset implements domain.WindowStore.
func (s *RedisWindowStore) Reset(ctx context.Context, key domain.Key) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return &domain.StoreUnavailableError{Key: key, Err: err}
	}
	return nil
}

// Ping reports whether the store is reachable.
func (s *RedisWindowStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, err)
	}
	return nil
}

var _ domain.WindowStore = (*RedisWindowStore)(nil)
