// Package postgres implements store.Store on a single JSONB table.
//
// Every record is one row keyed by its full path with its parent collection
// stored alongside for listing. Commit runs inside a transaction, and change
// notifications are published with pg_notify in the same transaction so
// subscribers only see committed writes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the LISTEN/NOTIFY channel carrying record changes.
const Channel = "record_changes"

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	hub  *store.Hub

	listenOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a store over an existing pool. Run Migrate first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		hub:  store.NewHub(),
		done: make(chan struct{}),
	}
}

func (s *Store) Create(ctx context.Context, collection string, rec store.Record) (string, error) {
	if err := store.ValidatePath(collection); err != nil {
		return "", err
	}
	id := store.NewID()
	if err := s.Commit(ctx, store.CreateIfAbsent(store.Join(collection, id), rec)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Read(ctx context.Context, path string) (store.Record, bool, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, false, err
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM records WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, true, nil
}

func (s *Store) Update(ctx context.Context, path string, partial store.Record) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	patch, err := json.Marshal(nonNil(partial))
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var merged []byte
		err := tx.QueryRow(ctx, `
			INSERT INTO records (path, parent, data)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (path) DO UPDATE
			SET data = records.data || EXCLUDED.data, updated_at = now()
			RETURNING data`,
			path, store.Parent(path), patch,
		).Scan(&merged)
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		return notify(ctx, tx, store.EventPut, path)
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Commit(ctx, store.Remove(path))
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Snapshot, error) {
	if err := store.ValidatePath(collection); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT path, data FROM records WHERE parent = $1 ORDER BY path`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return collectSnapshots(rows)
}

// QueryByField uses JSONB containment so the GIN index serves the lookup.
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]store.Snapshot, error) {
	if err := store.ValidatePath(collection); err != nil {
		return nil, err
	}
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT path, data FROM records WHERE parent = $1 AND data @> $2::jsonb ORDER BY path`,
		collection, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	return collectSnapshots(rows)
}

func collectSnapshots(rows pgx.Rows) ([]store.Snapshot, error) {
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		var rec store.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, store.Snapshot{Key: store.Base(path), Path: path, Value: rec})
	}
	return out, rows.Err()
}

// Commit applies ops in one transaction.
func (s *Store) Commit(ctx context.Context, ops ...store.Op) error {
	for _, op := range ops {
		if err := store.ValidatePath(op.Path); err != nil {
			return &store.OpError{Op: op, Err: err}
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, op := range ops {
			if err := applyOp(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyOp(ctx context.Context, tx pgx.Tx, op store.Op) error {
	value, err := json.Marshal(nonNil(op.Value))
	if err != nil {
		return &store.OpError{Op: op, Err: err}
	}
	parent := store.Parent(op.Path)

	switch op.Kind {
	case store.OpCreateIfAbsent:
		tag, err := tx.Exec(ctx, `
			INSERT INTO records (path, parent, data) VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (path) DO NOTHING`,
			op.Path, parent, value)
		if err != nil {
			return &store.OpError{Op: op, Err: err}
		}
		if tag.RowsAffected() == 0 {
			return &store.OpError{Op: op, Err: store.ErrExists}
		}
		return notify(ctx, tx, store.EventPut, op.Path)

	case store.OpSet:
		_, err := tx.Exec(ctx, `
			INSERT INTO records (path, parent, data) VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			op.Path, parent, value)
		if err != nil {
			return &store.OpError{Op: op, Err: err}
		}
		return notify(ctx, tx, store.EventPut, op.Path)

	case store.OpCompareAndSet:
		var affected int64
		if op.Expect == nil {
			tag, err := tx.Exec(ctx, `
				INSERT INTO records (path, parent, data) VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (path) DO NOTHING`,
				op.Path, parent, value)
			if err != nil {
				return &store.OpError{Op: op, Err: err}
			}
			affected = tag.RowsAffected()
		} else {
			expect, err := json.Marshal(op.Expect)
			if err != nil {
				return &store.OpError{Op: op, Err: err}
			}
			tag, err := tx.Exec(ctx, `
				UPDATE records SET data = $2::jsonb, updated_at = now()
				WHERE path = $1 AND data = $3::jsonb`,
				op.Path, value, expect)
			if err != nil {
				return &store.OpError{Op: op, Err: err}
			}
			affected = tag.RowsAffected()
		}
		if affected == 0 {
			return &store.OpError{Op: op, Err: store.ErrConflict}
		}
		return notify(ctx, tx, store.EventPut, op.Path)

	case store.OpDelete:
		_, err := tx.Exec(ctx,
			`DELETE FROM records WHERE path = $1 OR starts_with(path, $2)`,
			op.Path, op.Path+"/")
		if err != nil {
			return &store.OpError{Op: op, Err: err}
		}
		return notify(ctx, tx, store.EventDelete, op.Path)
	}

	return &store.OpError{Op: op, Err: fmt.Errorf("unknown op kind %q", op.Kind)}
}

func nonNil(rec store.Record) store.Record {
	if rec == nil {
		return store.Record{}
	}
	return rec
}

// Close stops the notification listener and drops subscribers. The pool is
// owned by the caller.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.hub.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var _ store.Store = (*Store)(nil)
