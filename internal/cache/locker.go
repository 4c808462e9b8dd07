package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when another writer holds the lock for the same entity.
var ErrBusy = errors.New("resource is busy, try again")

const lockTTL = 30 * time.Second

// Locker serializes writers across API replicas. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type redisLocker struct {
	client  *redislock.Client
	retries int
}

// NewLocker returns a redislock-backed locker, or a no-op one when rdb is nil.
// Single-replica deployments rely on the database row locks alone.
func NewLocker(rdb *redis.Client) Locker {
	if rdb == nil {
		return NoopLocker{}
	}
	return &redisLocker{client: redislock.New(rdb), retries: 10}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("sigef:lock:%s", key)
	lock, err := l.client.Obtain(ctx, lockKey, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
