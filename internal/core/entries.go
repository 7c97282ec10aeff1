package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	entriesCollection     = "tr800"
	allocationsCollection = "allocations"

	// allocationDestination is the destination whose entries are mirrored
	// into allocations.
	allocationDestination = "ssd"
)

// Casers carry state, so each call builds its own.

func foldKey(s string) string { return cases.Fold().String(s) }

func lower(s string) string { return cases.Lower(language.Und).String(s) }

// EntryInput is a TR800 fuel entry as submitted.
type EntryInput struct {
	Number      string `json:"number" validate:"required"`
	Quantity    string `json:"quantity" validate:"required,numstr"`
	Product     string `json:"product" validate:"required"`
	Destination string `json:"destination" validate:"required"`
}

// Entry is a stored TR800 fuel entry. Allocations share the same shape.
type Entry struct {
	Key                string  `json:"key,omitempty"`
	Number             string  `json:"number"`
	InitialQuantity    float64 `json:"initialQuantity"`
	RemainingQuantity  float64 `json:"remainingQuantity"`
	Product            string  `json:"product"`
	Destination        string  `json:"destination"`
	ProductDestination string  `json:"product_destination"`
	Timestamp          int64   `json:"timestamp"`
}

// EntryKey is the record key for an entry number: trimmed, case-folded and
// path-escaped, so numbers that differ only in case or surrounding space
// collide.
func EntryKey(number string) string {
	return store.Key(foldKey(strings.TrimSpace(number)))
}

// CreateEntry records a TR800 entry, and for destination "ssd" an identical
// allocation, in one atomic write. A number already on file yields a
// *DuplicateError and nothing is written.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (Entry, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return Entry{}, err
	}
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return Entry{}, invalid("number", in.Number, MsgRequired)
	}

	// Entries written before keys were derived from the number carry
	// random keys; look for those by field.
	legacy, err := s.store.QueryByField(ctx, entriesCollection, "number", number)
	if err != nil {
		return Entry{}, remote("query entries", err)
	}
	if len(legacy) > 0 {
		return Entry{}, &DuplicateError{Kind: DuplicateEntry, Value: number}
	}

	qty, _ := Amount(in.Quantity).Float64()
	product := lower(in.Product)
	destination := lower(in.Destination)

	entry := Entry{
		Number:             number,
		InitialQuantity:    qty,
		RemainingQuantity:  qty,
		Product:            product,
		Destination:        destination,
		ProductDestination: product + "_" + destination,
		Timestamp:          s.now().UnixMilli(),
	}
	rec, err := store.Encode(entry)
	if err != nil {
		return Entry{}, err
	}

	key := EntryKey(number)
	ops := []store.Op{store.CreateIfAbsent(store.Join(entriesCollection, key), rec)}
	if destination == allocationDestination {
		ops = append(ops, store.CreateIfAbsent(store.Join(allocationsCollection, key), rec))
	}

	if err := s.commit(ctx, ops...); err != nil {
		if errors.Is(err, store.ErrExists) {
			return Entry{}, &DuplicateError{Kind: DuplicateEntry, Value: number}
		}
		return Entry{}, remote("create entry", err)
	}

	entry.Key = key
	s.logger(ctx).Info("entry created",
		"number", number,
		"destination", destination,
		"allocated", len(ops) > 1,
	)
	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionEntryCreate,
		Path:     store.Join(entriesCollection, key),
		NewValue: rec,
	})
	return entry, nil
}

// ListEntries returns every TR800 entry in key order.
func (s *Service) ListEntries(ctx context.Context) ([]Entry, error) {
	return s.listEntries(ctx, entriesCollection)
}

// ListAllocations returns every allocation in key order.
func (s *Service) ListAllocations(ctx context.Context) ([]Entry, error) {
	return s.listEntries(ctx, allocationsCollection)
}

func (s *Service) listEntries(ctx context.Context, collection string) ([]Entry, error) {
	snaps, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, remote("list "+collection, err)
	}
	out := make([]Entry, 0, len(snaps))
	for _, snap := range snaps {
		var e Entry
		if err := store.Decode(snap.Value, &e); err != nil {
			return nil, err
		}
		e.Key = snap.Key
		out = append(out, e)
	}
	return out, nil
}
