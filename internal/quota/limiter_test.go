package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:quota"), mr
}

func storesUnderTest(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore("model_1", "model_2"),
		"redis":  redisStore,
	}
}

func TestLimiter_ExhaustsAfterQuota(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			l := NewLimiter(map[string]int{"model_1": 2, "model_2": 5}, store, WithClock(clock.Now))

			for i := 0; i < 2; i++ {
				allowed, _, err := l.CheckQuota(ctx, "model_1")
				require.NoError(t, err)
				require.True(t, allowed, "第 %d 次检查应允许", i+1)
				require.NoError(t, l.RecordSuccess(ctx, "model_1"))
			}

			allowed, msg, err := l.CheckQuota(ctx, "model_1")
			require.NoError(t, err)
			assert.False(t, allowed)
			assert.Contains(t, msg, "model_1")
			assert.Contains(t, msg, "2/2")

			allowed, _, err = l.CheckQuota(ctx, "model_2")
			require.NoError(t, err)
			assert.True(t, allowed, "quota is tracked per model")
		})
	}
}

func TestLimiter_RolloverResetsCounts(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			l := NewLimiter(map[string]int{"model_1": 1}, store, WithClock(clock.Now))

			require.NoError(t, l.RecordSuccess(ctx, "model_1"))
			allowed, _, err := l.CheckQuota(ctx, "model_1")
			require.NoError(t, err)
			require.False(t, allowed)

			clock.Advance(2 * time.Hour)

			allowed, _, err = l.CheckQuota(ctx, "model_1")
			require.NoError(t, err)
			assert.True(t, allowed)
			used, err := l.Usage(ctx, "model_1")
			require.NoError(t, err)
			assert.Equal(t, 0, used)
		})
	}
}

func TestLimiter_UnknownModelDenied(t *testing.T) {
	l := NewLimiter(map[string]int{"model_1": 3}, NewMemoryStore("model_1"))

	allowed, msg, err := l.CheckQuota(context.Background(), "mystery")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.NotEmpty(t, msg)
	assert.Equal(t, 0, l.Quota("mystery"))
}

func TestLimiter_ZeroQuotaDenied(t *testing.T) {
	l := NewLimiter(map[string]int{"model_1": 0}, NewMemoryStore("model_1"))

	allowed, _, err := l.CheckQuota(context.Background(), "model_1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_QuotaMapIsCopied(t *testing.T) {
	quotas := map[string]int{"model_1": 1}
	l := NewLimiter(quotas, NewMemoryStore("model_1"))
	quotas["model_1"] = 100

	assert.Equal(t, 1, l.Quota("model_1"))
}

type failingStore struct{}

func (failingStore) Count(context.Context, string, string) (int, error) {
	return 0, errors.New("store down")
}

func (failingStore) Increment(context.Context, string, string) (int, error) {
	return 0, errors.New("store down")
}

func TestLimiter_StoreErrors(t *testing.T) {
	l := NewLimiter(map[string]int{"model_1": 1}, failingStore{})

	allowed, _, err := l.CheckQuota(context.Background(), "model_1")
	assert.Error(t, err)
	assert.False(t, allowed)
	assert.Error(t, l.RecordSuccess(context.Background(), "model_1"))
}

func TestLimiter_ConcurrentRecordSuccess(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLimiter(map[string]int{"model_2": 1000}, store, WithClock(newClock().Now))

			const workers = 20
			const perWorker = 25
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						_, _, _ = l.CheckQuota(ctx, "model_2")
						_ = l.RecordSuccess(ctx, "model_2")
					}
				}()
			}
			wg.Wait()

			used, err := l.Usage(ctx, "model_2")
			require.NoError(t, err)
			assert.Equal(t, workers*perWorker, used)
		})
	}
}
