package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Locker. It serialises callers within one process
// only; deployments with several instances use Redis.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Obtain waits until key is free or ctx ends. The ttl is advisory: a lock
// held longer than ttl is released automatically.
func (l *Local) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrNotObtained
	}

	held := &localLock{ch: ch}
	if ttl > 0 {
		held.timer = time.AfterFunc(ttl, held.release)
	}
	return held, nil
}

type localLock struct {
	ch    chan struct{}
	once  sync.Once
	timer *time.Timer
}

func (h *localLock) release() {
	h.once.Do(func() { <-h.ch })
}

func (h *localLock) Release(context.Context) error {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.release()
	return nil
}
