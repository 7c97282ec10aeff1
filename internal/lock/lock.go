// Package lock provides named mutual exclusion for operations that must not
// interleave, such as allocating the next invoice number.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when a lock is held elsewhere and could not be
// acquired before the wait expired.
var ErrNotObtained = errors.New("could not obtain lock")

// Locker hands out named locks.
type Locker interface {
	// Obtain acquires the lock for key. ttl bounds how long the lock survives
	// if the holder never releases it.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// With runs fn while holding key.
func With(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	held, err := l.Obtain(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer held.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}
