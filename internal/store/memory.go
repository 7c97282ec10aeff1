package store

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// NewID returns a new push key. UUIDv7 keys sort by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Memory is an in-process Store. Records are kept JSON-normalized so that
// comparisons behave like the Postgres store's JSONB comparisons.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	hub     *Hub
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		hub:     NewHub(),
	}
}

func (m *Memory) Create(ctx context.Context, collection string, rec Record) (string, error) {
	if err := ValidatePath(collection); err != nil {
		return "", err
	}
	id := NewID()
	if err := m.Commit(ctx, CreateIfAbsent(Join(collection, id), rec)); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Read(ctx context.Context, path string) (Record, bool, error) {
	if err := ValidatePath(path); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	rec, ok := m.records[path]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	out, err := Normalize(rec)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Memory) Update(ctx context.Context, path string, partial Record) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := Normalize(partial)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	merged := make(Record, len(m.records[path])+len(patch))
	maps.Copy(merged, m.records[path])
	maps.Copy(merged, patch)
	m.records[path] = merged
	m.hub.Publish(Event{Type: EventPut, Path: path, Value: merged})
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Commit(ctx, Remove(path))
}

func (m *Memory) List(ctx context.Context, collection string) ([]Snapshot, error) {
	return m.query(ctx, collection, func(Record) bool { return true })
}

func (m *Memory) QueryByField(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	want, err := Normalize(Record{field: value})
	if err != nil {
		return nil, err
	}
	return m.query(ctx, collection, func(rec Record) bool {
		got, ok := rec[field]
		return ok && reflect.DeepEqual(got, want[field])
	})
}

func (m *Memory) query(ctx context.Context, collection string, match func(Record) bool) ([]Snapshot, error) {
	if err := ValidatePath(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Snapshot
	for path, rec := range m.records {
		if Parent(path) != collection || !match(rec) {
			continue
		}
		out = append(out, Snapshot{Key: Base(path), Path: path, Value: rec})
	}
	m.mu.RUnlock()

	for i := range out {
		v, err := Normalize(out[i].Value)
		if err != nil {
			return nil, err
		}
		out[i].Value = v
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func(Event)) (func(), error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return m.hub.Subscribe(ctx, path, fn), nil
}

// Commit stages every op against a copy of the record map and swaps it in
// only when all ops succeed.
func (m *Memory) Commit(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized := make([]Op, len(ops))
	for i, op := range ops {
		if err := ValidatePath(op.Path); err != nil {
			return &OpError{Op: op, Err: err}
		}
		v, err := Normalize(op.Value)
		if err != nil {
			return &OpError{Op: op, Err: err}
		}
		e, err := Normalize(op.Expect)
		if err != nil {
			return &OpError{Op: op, Err: err}
		}
		op.Value, op.Expect = v, e
		normalized[i] = op
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := maps.Clone(m.records)
	var events []Event

	for _, op := range normalized {
		switch op.Kind {
		case OpCreateIfAbsent:
			if _, ok := staged[op.Path]; ok {
				return &OpError{Op: op, Err: ErrExists}
			}
			staged[op.Path] = op.Value
			events = append(events, Event{Type: EventPut, Path: op.Path, Value: op.Value})

		case OpSet:
			staged[op.Path] = op.Value
			events = append(events, Event{Type: EventPut, Path: op.Path, Value: op.Value})

		case OpCompareAndSet:
			current, ok := staged[op.Path]
			if op.Expect == nil {
				if ok {
					return &OpError{Op: op, Err: ErrConflict}
				}
			} else if !ok || !reflect.DeepEqual(current, op.Expect) {
				return &OpError{Op: op, Err: ErrConflict}
			}
			staged[op.Path] = op.Value
			events = append(events, Event{Type: EventPut, Path: op.Path, Value: op.Value})

		case OpDelete:
			for p := range staged {
				if IsWithin(p, op.Path) {
					delete(staged, p)
				}
			}
			events = append(events, Event{Type: EventDelete, Path: op.Path})

		default:
			return &OpError{Op: op, Err: fmt.Errorf("unknown op kind %q", op.Kind)}
		}
	}

	m.records = staged
	for _, ev := range events {
		m.hub.Publish(ev)
	}
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	m.hub.Close()
	return nil
}

var _ Store = (*Memory)(nil)
