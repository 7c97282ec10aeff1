// Package policy decides whether a signed-in user may mutate a record.
//
// Every update or delete on a gated collection goes through one Authorizer
// so the rule is applied the same way everywhere.
package policy

import (
	"context"
	"errors"
	"slices"
	"strings"
)

var (
	// ErrWorkIDMismatch means the supplied work ID differs from the stored one.
	ErrWorkIDMismatch = errors.New("work id does not match")

	// ErrWorkIDRequired means no work ID was supplied for a gated action.
	ErrWorkIDRequired = errors.New("work id required")

	// ErrNoWorkIDOnFile means the user has no work ID to compare against.
	ErrNoWorkIDOnFile = errors.New("no work id on file for user")
)

// Action is the kind of mutation being authorised.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Request describes one mutation attempt.
type Request struct {
	UID    string
	Action Action
	Path   string

	// WorkID is the value the user re-entered for this action.
	WorkID string
}

// Authorizer approves or denies a mutation. A nil error means proceed.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// GatedCollections are the top-level collections whose updates and deletes
// require work ID re-entry.
var GatedCollections = []string{"trucks", "creditors", "expenses"}

// Gated reports whether path lies in a gated collection.
func Gated(path string) bool {
	top, _, _ := strings.Cut(path, "/")
	return slices.Contains(GatedCollections, top)
}

// AllowAll approves everything; for tooling that runs without a user.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, Request) error { return nil }
