package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

func newTestLocker(t *testing.T, opts ...Option) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, opts...), srv
}

func TestLocker_AcquireRelease(t *testing.T) {
	t.Parallel()

	locker, srv := newTestLocker(t, WithWait(0))
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "lock:product:1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	got, err := srv.Get("lock:product:1")
	require.NoError(t, err)
	require.Equal(t, token, got)
	require.Equal(t, 10*time.Second, srv.TTL("lock:product:1"))

	_, ok, err = locker.Acquire(ctx, "lock:product:1", 10*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locker.Release(ctx, "lock:product:1", token))
	require.False(t, srv.Exists("lock:product:1"))
}

func TestLocker_ReleaseWithStaleToken(t *testing.T) {
	t.Parallel()

	locker, srv := newTestLocker(t, WithWait(0))
	ctx := context.Background()

	stale, ok, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder's lock expires and a second holder takes it.
	srv.FastForward(2 * time.Second)
	current, ok, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, locker.Release(ctx, "k", stale), domain.ErrLockNotHeld)
	got, err := srv.Get("k")
	require.NoError(t, err)
	require.Equal(t, current, got)
}

func TestLocker_WaitsForRelease(t *testing.T) {
	t.Parallel()

	locker, _ := newTestLocker(t, WithWait(2*time.Second), WithRetryInterval(10*time.Millisecond))
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = locker.Release(context.Background(), "k", token)
	}()

	_, ok, err = locker.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocker_AcquireHonoursContext(t *testing.T) {
	t.Parallel()

	locker, _ := newTestLocker(t, WithWait(time.Minute), WithRetryInterval(10*time.Millisecond))
	_, ok, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok, err = locker.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ok)
}

func TestLocker_MutualExclusion(t *testing.T) {
	t.Parallel()

	locker, _ := newTestLocker(t, WithWait(0))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := locker.Acquire(ctx, "contended", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners.Load())
}
