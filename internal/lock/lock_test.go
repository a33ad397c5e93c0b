package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *Locker {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client)
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	calls := 0
	for range 2 {
		err := locker.WithLock(ctx, "job", time.Minute, 1, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestWithLock_HeldElsewhere(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "job", time.Minute, 1, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := locker.WithLock(ctx, "job", time.Minute, 1, func(context.Context) error {
		t.Fatal("must not run while lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	close(release)
}

func TestWithLock_SerializesSameKey(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(ctx, "checkout:user-1", time.Minute, 50, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}
