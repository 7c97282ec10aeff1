// Package identity is the authentication collaborator: it owns account
// credentials and profile data and knows nothing about sessions.
//
// Accounts live at accounts/{uid} with a uniqueness index at
// account_emails/{emailKey}; both are written in one commit so two
// registrations for the same address cannot both succeed.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an address already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound is returned by lookups for unknown uids.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidResetToken covers unknown, used and expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password too short")
)

// MinPasswordLength matches the hosted auth provider the ledger was built on.
const MinPasswordLength = 6

const (
	accountsCollection = "accounts"
	emailIndex         = "account_emails"
	resetsCollection   = "password_resets"
)

// Principal is the authenticated user as seen by the rest of the service.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// account is the stored form of a user.
type account struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"displayName,omitempty"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (a account) principal(uid string) Principal {
	return Principal{
		UID:         uid,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}

type resetToken struct {
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileUpdate holds optional profile changes; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// normalizeEmail is the comparison form of an address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailKey(email string) string {
	return store.Join(emailIndex, store.Key(normalizeEmail(email)))
}

func accountPath(uid string) string {
	return store.Join(accountsCollection, uid)
}
