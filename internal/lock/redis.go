package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a Locker backed by redislock, shared by every instance pointed
// at the same Redis.
type Redis struct {
	client *redislock.Client
	prefix string

	// RetryEvery and MaxWait control how long Obtain polls a held lock.
	RetryEvery time.Duration
	MaxWait    time.Duration
}

// NewRedis creates a Redis locker. Keys are stored as "lock:<key>".
func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{
		client:     redislock.New(rdb),
		prefix:     "lock:",
		RetryEvery: 100 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.MaxWait)
	defer cancel()

	retries := int(r.MaxWait / r.RetryEvery)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.RetryEvery), retries),
	}

	held, err := r.client.Obtain(waitCtx, r.prefix+key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			return nil, ErrNotObtained
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return redisLock{held}, nil
}

type redisLock struct {
	l *redislock.Lock
}

func (h redisLock) Release(ctx context.Context) error {
	err := h.l.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
