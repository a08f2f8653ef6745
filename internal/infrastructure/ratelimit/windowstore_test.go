package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

var t0 = time.UnixMilli(1_700_000_000_000)

func TestRedisWindowStore_RecordAndCount_Grows(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := store.RecordAndCount(ctx, "rl:global:user:1", t0, time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.TotalHits, "identical timestamps must not collapse")
		assert.True(t, res.ReleaseAt.IsZero())
	}
}

func TestRedisWindowStore_RecordAndCount_Slides(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()
	key := domain.Key("rl:global:user:slide")

	_, err := store.RecordAndCount(ctx, key, t0, time.Minute, 10)
	require.NoError(t, err)
	_, err = store.RecordAndCount(ctx, key, t0.Add(30*time.Second), time.Minute, 10)
	require.NoError(t, err)

	// First entry sits exactly on the window edge and still counts.
	res, err := store.RecordAndCount(ctx, key, t0.Add(time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalHits)

	// One millisecond later it has expired.
	res, err = store.RecordAndCount(ctx, key, t0.Add(time.Minute+time.Millisecond), time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalHits)
}

func TestRedisWindowStore_RecordAndCount_ReleaseAt(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()
	key := domain.Key("rl:global:user:release")

	for i := 0; i < 3; i++ {
		_, err := store.RecordAndCount(ctx, key, t0.Add(time.Duration(i)*time.Second), time.Minute, 3)
		require.NoError(t, err)
	}

	res, err := store.RecordAndCount(ctx, key, t0.Add(10*time.Second), time.Minute, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.TotalHits)
	// Over by one: the bucket drops back under max once the oldest two entries
	// (t0 and t0+1s) have expired, so release is keyed on the second.
	assert.Equal(t, t0.Add(time.Second).UnixMilli(), res.ReleaseAt.UnixMilli())
}

func TestRedisWindowStore_RecordAndCount_ZeroMaxHasNoRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)

	res, err := store.RecordAndCount(context.Background(), "rl:blocked:addr:x", t0, time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
	assert.True(t, res.ReleaseAt.IsZero())
}

func TestRedisWindowStore_RecordAndCount_SetsExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	key := domain.Key("rl:global:addr:ttl")

	_, err := store.RecordAndCount(context.Background(), key, t0, 1500*time.Millisecond, 10)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, mr.TTL(key.String()))

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists(key.String()), "abandoned buckets clean themselves up")
}

func TestRedisWindowStore_RecordAndCount_DistinctKeys(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.RecordAndCount(ctx, "rl:global:user:a", t0, time.Minute, 10)
		require.NoError(t, err)
	}

	res, err := store.RecordAndCount(ctx, "rl:global:user:b", t0, time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
}

func TestRedisWindowStore_RecordAndCount_Concurrent(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()

	const workers = 50
	hits := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := store.RecordAndCount(ctx, "rl:global:user:race", t0, time.Minute, 10)
			if err == nil {
				hits[i] = res.TotalHits
			}
		}(i)
	}
	wg.Wait()

	// Every caller observes a distinct post-insert count, so exactly max of
	// them fall at or under the limit.
	seen := make(map[int64]bool, workers)
	admitted := 0
	for _, h := range hits {
		require.NotZero(t, h)
		assert.False(t, seen[h], "count %d observed twice", h)
		seen[h] = true
		if h <= 10 {
			admitted++
		}
	}
	assert.Equal(t, 10, admitted)
}

func TestRedisWindowStore_CountAndReset(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisWindowStore(client)
	ctx := context.Background()
	key := domain.Key("rl:global:user:reset")

	for i := 0; i < 3; i++ {
		_, err := store.RecordAndCount(ctx, key, t0, time.Minute, 10)
		require.NoError(t, err)
	}

	n, err := store.Count(ctx, key, t0.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.Count(ctx, key, t0.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "expired entries are not counted")

	require.NoError(t, store.Reset(ctx, key))

	n, err = store.Count(ctx, key, t0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisWindowStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisWindowStore(client, WithTimeout(50*time.Millisecond))
	mr.Close()

	_, err := store.RecordAndCount(context.Background(), "rl:global:user:down", t0, time.Minute, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	var storeErr *domain.StoreUnavailableError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, domain.Key("rl:global:user:down"), storeErr.Key)

	assert.True(t, errors.Is(store.Ping(context.Background()), domain.ErrStoreUnavailable))
	assert.True(t, errors.Is(store.Reset(context.Background(), "k"), domain.ErrStoreUnavailable))
}

func TestRedisWindowStore_UsesEntryIDs(t *testing.T) {
	mr, client := setupTestRedis(t)
	n := 0
	store := NewRedisWindowStore(client, WithEntryIDs(func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}))

	_, err := store.RecordAndCount(context.Background(), "rl:ids", t0, time.Minute, 10)
	require.NoError(t, err)

	members, err := mr.ZMembers("rl:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-1"}, members)
}

func TestConnect(t *testing.T) {
	_, client := setupTestRedis(t)
	require.NoError(t, Connect(context.Background(), client, 2, logger.NewNop()))
}

func TestConnect_GivesUp(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	err := Connect(context.Background(), client, 1, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
