package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/jackc/pgx/v5"
)

// listenRetryDelay is how long the listener waits before reconnecting.
const listenRetryDelay = time.Second

type notification struct {
	Type store.EventType `json:"type"`
	Path string          `json:"path"`
}

// notify queues a change notification inside tx. Postgres delivers it only
// if the transaction commits.
func notify(ctx context.Context, tx pgx.Tx, typ store.EventType, path string) error {
	payload, err := json.Marshal(notification{Type: typ, Path: path})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	return nil
}

// Subscribe starts the shared listener on first use and registers fn.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	s.listenOnce.Do(func() {
		listenCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.listen(listenCtx)
	})
	return s.hub.Subscribe(ctx, path, fn), nil
}

// listen holds one pool connection in LISTEN mode and republishes every
// notification to the hub, reconnecting after failures.
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.listenOnceConn(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Error("store: notification listener failed, reconnecting",
			"error", err,
			"retry_in", listenRetryDelay,
		)
		// Changes committed while disconnected are never notified.
		s.hub.Resync()

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *Store) listenOnceConn(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Debug("store: listening for record changes", "channel", Channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var msg notification
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			slog.Warn("store: ignoring malformed notification", "payload", n.Payload, "error", err)
			continue
		}

		ev := store.Event{Type: msg.Type, Path: msg.Path}
		if msg.Type == store.EventPut {
			rec, found, err := s.Read(ctx, msg.Path)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("store: failed to load changed record", "path", msg.Path, "error", err)
			}
			if !found {
				// Deleted again before we could read it; a delete event follows.
				continue
			}
			ev.Value = rec
		}
		s.hub.Publish(ev)
	}
}
