package redisclient

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *Queue {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_USERNAME"), os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, "test:queue:"+uuid.NewString())
}

func TestSlotKeyIsInstantScoped(t *testing.T) {
	pro := uuid.New()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	local := at.In(time.FixedZone("BRT", -3*3600))

	assert.Equal(t, SlotKey(pro, at), SlotKey(pro, local))
	assert.NotEqual(t, SlotKey(pro, at), SlotKey(pro, at.Add(time.Minute)))
}

func TestWithSlotLockExcludesConcurrentHolders(t *testing.T) {
	q := setupRedis(t)
	locker := NewRedisSlotLocker(q.client, 2*time.Second)
	key := SlotKey(uuid.New(), time.Now())

	var entered, rejected atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
				entered.Add(1)
				<-release
				return nil
			})
			if err == ErrLockNotAcquired {
				rejected.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return rejected.Load() == 4 }, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), entered.Load())
	assert.Equal(t, int32(4), rejected.Load())
}

func TestWithSlotLockReleasesOwnKeyOnly(t *testing.T) {
	q := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisSlotLocker(q.client, 2*time.Second).(*redisSlotLocker)
	key := SlotKey(uuid.New(), time.Now())

	err := locker.WithSlotLock(ctx, key, func(ctx context.Context) error {
		ttl, err := q.client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		return errors.New("insert failed")
	})
	assert.EqualError(t, err, "insert failed")

	n, err := q.client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "lock key must be released after fn returns")

	// a stale holder must not delete a key that someone else now owns
	require.NoError(t, q.client.Set(ctx, key, "other-owner", time.Minute).Err())
	t.Cleanup(func() { q.client.Del(context.Background(), key) })
	require.NoError(t, locker.release(ctx, key, "stale-token"))

	owner, err := q.client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-owner", owner)

	err = locker.WithSlotLock(ctx, key, func(context.Context) error {
		t.Fatal("fn must not run while another owner holds the key")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestQueueFIFO(t *testing.T) {
	q := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []byte("first")))
	require.NoError(t, q.Push(ctx, []byte("second")))

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = q.Pop(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
