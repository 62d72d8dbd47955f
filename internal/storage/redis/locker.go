package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	defaultWait          = 2 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a single-instance Redis lock: SET NX PX to acquire, a
// compare-and-delete script to release.
type Locker struct {
	client        goredis.UniversalClient
	wait          time.Duration
	retryInterval time.Duration
}

type Option func(*Locker)

// WithWait bounds how long Acquire keeps retrying a held key. Zero means a
// single attempt.
func WithWait(d time.Duration) Option {
	return func(l *Locker) {
		if d >= 0 {
			l.wait = d
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

func NewLocker(client goredis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:        client,
		wait:          defaultWait,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire returns ok=false when the key stayed held for the whole wait.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("redis set nx: %w", err)
		}
		if ok {
			return token, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		timer := time.NewTimer(min(l.retryInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release fails with ErrLockNotHeld when the key expired or now belongs to
// another holder.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	if n == 0 {
		return domain.ErrLockNotHeld
	}
	return nil
}

// Ping reports whether the lock store is reachable.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
