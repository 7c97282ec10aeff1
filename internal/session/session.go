// Package session owns the authenticated session lifecycle.
//
// A single Manager holds every live session. Signing in creates a session
// record, a signed token for the client, and a Guard that signs the session
// out after a configurable period without activity. Components that need to
// react to sign-in or sign-out register with Manager.OnAuthStateChanged
// instead of polling.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/identity"
)

var (
	// ErrNoSession is returned when a session is missing, signed out or idle-expired.
	ErrNoSession = errors.New("session not found or expired")

	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is the stored state of one sign-in.
type Session struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// EventKind describes an auth-state transition.
type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
	Expired   EventKind = "expired"
)

// AuthEvent is delivered to OnAuthStateChanged listeners.
type AuthEvent struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	UID       string    `json:"uid"`
	At        time.Time `json:"at"`
}

// Authenticator is the subset of the auth collaborator the manager needs.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (identity.Principal, error)
	Lookup(ctx context.Context, uid string) (identity.Principal, error)
}

// Store persists sessions. Entries lapse on their own once ttl passes
// without a Save or Touch.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Touch(ctx context.Context, id string, at time.Time, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
