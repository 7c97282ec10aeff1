// Package store provides the hierarchical record store used by every
// ledger collection.
//
// Records are JSON objects addressed by slash-separated paths such as
// "trucks/0192f3..." or "creditors/abc/expenses/def". A collection is any
// path whose direct children are records. Deleting a path removes the
// record and all of its descendants.
//
// Two implementations exist: [Memory] for development and tests, and the
// Postgres store in the postgres subpackage.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExists is returned by a CreateIfAbsent op whose path is taken.
	ErrExists = errors.New("record already exists")

	// ErrConflict is returned by a CompareAndSet op whose expectation failed.
	ErrConflict = errors.New("record changed concurrently")

	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("invalid record path")
)

// Record is a single JSON object stored at a path.
type Record map[string]any

// Snapshot is a record together with its location.
type Snapshot struct {
	Key   string `json:"key"`
	Path  string `json:"path"`
	Value Record `json:"value"`
}

// EventType describes what happened to a path.
type EventType string

const (
	EventPut    EventType = "put"
	EventDelete EventType = "delete"

	// EventResync is the last event of a subscription that missed changes.
	// The subscriber must reload the path and subscribe again.
	EventResync EventType = "resync"
)

// Event is delivered to subscribers when a record changes.
// Value is nil for deletes and resyncs.
type Event struct {
	Type  EventType `json:"type"`
	Path  string    `json:"path"`
	Value Record    `json:"value,omitempty"`
}

// Store is the record store contract.
//
// Single-path operations are independent of each other. Writes that must
// succeed or fail together go through Commit.
type Store interface {
	// Create stores rec under collection with a server-assigned key.
	Create(ctx context.Context, collection string, rec Record) (string, error)

	// Read returns the record at path. found is false when it does not exist.
	Read(ctx context.Context, path string) (rec Record, found bool, err error)

	// Update merges partial into the record at path, creating it if absent.
	Update(ctx context.Context, path string, partial Record) error

	// Delete removes the record at path and everything below it.
	Delete(ctx context.Context, path string) error

	// List returns the direct children of collection ordered by key.
	List(ctx context.Context, collection string) ([]Snapshot, error)

	// QueryByField returns direct children of collection whose field equals value.
	QueryByField(ctx context.Context, collection, field string, value any) ([]Snapshot, error)

	// Subscribe calls fn for every change at, below, or above path (ancestor
	// deletes). The returned function stops delivery.
	Subscribe(ctx context.Context, path string, fn func(Event)) (func(), error)

	// Commit applies ops atomically: either all take effect or none do.
	Commit(ctx context.Context, ops ...Op) error

	// Close releases resources held by the store.
	Close() error
}

// OpKind identifies a Commit operation.
type OpKind string

const (
	OpCreateIfAbsent OpKind = "create_if_absent"
	OpSet            OpKind = "set"
	OpDelete         OpKind = "delete"
	OpCompareAndSet  OpKind = "compare_and_set"
)

// Op is one write inside a Commit.
type Op struct {
	Kind  OpKind
	Path  string
	Value Record

	// Expect is the value CompareAndSet requires at Path. Nil means the
	// path must be absent.
	Expect Record
}

// CreateIfAbsent writes value at path, failing the commit with ErrExists
// when the path is already taken.
func CreateIfAbsent(path string, value Record) Op {
	return Op{Kind: OpCreateIfAbsent, Path: path, Value: value}
}

// Set replaces the record at path.
func Set(path string, value Record) Op {
	return Op{Kind: OpSet, Path: path, Value: value}
}

// Remove deletes path and its descendants.
func Remove(path string) Op {
	return Op{Kind: OpDelete, Path: path}
}

// CompareAndSet replaces the record at path only if it currently equals
// expect, failing the commit with ErrConflict otherwise.
func CompareAndSet(path string, expect, value Record) Op {
	return Op{Kind: OpCompareAndSet, Path: path, Value: value, Expect: expect}
}

// OpError reports which op of a commit failed.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op.Kind, e.Op.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Normalize round-trips rec through JSON so that values compare the same
// way regardless of which implementation stored them.
func Normalize(rec Record) (Record, error) {
	if rec == nil {
		return nil, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// Decode converts a record into a typed struct using its JSON tags.
func Decode(rec Record, v any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return json.Unmarshal(b, v)
}

// Encode converts a typed struct into a record using its JSON tags.
func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}
