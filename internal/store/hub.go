package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many undelivered events a subscriber may lag.
const subscriberBuffer = 64

// Hub fans out change events to path subscribers.
//
// Each subscriber gets its own buffered channel and delivery goroutine, so
// events reach one subscriber in publish order and a slow subscriber cannot
// block writers. A subscriber that falls a full buffer behind is ended: it
// receives what was already queued, then one EventResync, and nothing
// after that. It must reload and subscribe again.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

type subscriber struct {
	path  string
	ch    chan Event
	once  sync.Once
	stale atomic.Bool
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers fn for events affecting path. Delivery stops when the
// returned function is called or ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, path string, fn func(Event)) func() {
	sub := &subscriber{
		path: path,
		ch:   make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		for ev := range sub.ch {
			fn(ev)
		}
		if sub.stale.Load() {
			fn(Event{Type: EventResync, Path: sub.path})
		}
	}()

	remove := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		sub.close()
	}

	if ctx == nil || ctx.Done() == nil {
		return remove
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}
}

// Publish delivers ev to every subscriber it affects.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		if !affects(sub.path, ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("store: subscriber fell behind, ending it with a resync",
				"watched", sub.path,
				"path", ev.Path,
				"type", ev.Type,
			)
			h.endLocked(id, sub)
		}
	}
}

// Resync ends every subscriber with an EventResync. Use it when events may
// have been missed upstream.
func (h *Hub) Resync() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		h.endLocked(id, sub)
	}
}

func (h *Hub) endLocked(id uint64, sub *subscriber) {
	sub.stale.Store(true)
	delete(h.subs, id)
	sub.close()
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
