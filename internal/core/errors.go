package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/lock"
	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/session"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

// Field error messages. MapError keys off these, so handlers and tests
// should use the constants rather than literal strings.
const (
	MsgRequired      = "required field is empty"
	MsgInvalidDate   = "invalid date, use dd/mm/yyyy"
	MsgInvalidISO    = "invalid date, use yyyy-mm-dd"
	MsgInvalidNumber = "invalid number"
	MsgInvalidWorkID = "invalid work id"
	MsgEmailBinding  = "email must contain the work id"
	MsgPasswordMatch = "passwords do not match"
	MsgPasswordShort = "password too short"
	MsgInvalidValue  = "invalid value"
)

// FieldError is a single failed check on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationError carries every field check that failed for one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func invalid(field, value, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Value: value, Message: msg}}}
}

// DuplicateKind says what was duplicated.
type DuplicateKind string

const (
	DuplicateEntry DuplicateKind = "entry"
	DuplicateEmail DuplicateKind = "email"
)

// DuplicateError is returned when a value that must be unique is taken.
type DuplicateError struct {
	Kind  DuplicateKind
	Value string
}

func (e *DuplicateError) Error() string {
	switch e.Kind {
	case DuplicateEntry:
		return "TR800 number already exists."
	case DuplicateEmail:
		return "email already registered"
	}
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Value)
}

// AuthorizationError is returned when the work ID gate rejects a mutation.
type AuthorizationError struct {
	Path string
	Err  error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorised to modify %s: %v", e.Path, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// NotFoundError is returned when the target of an operation does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, store.ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

// RemoteOperationError wraps a failure of the store or lock service.
type RemoteOperationError struct {
	Op  string
	Err error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

func remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteOperationError{Op: op, Err: err}
}

// ArtifactError is returned when an invoice or export workbook cannot be built.
type ArtifactError struct {
	Name string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact generation failed for %s: %v", e.Name, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// StatusCode picks the HTTP status for err.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		de *DuplicateError
		ae *AuthorizationError
		ne *NotFoundError
		re *RemoteOperationError
		xe *ArtifactError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusConflict
	case errors.As(err, &ae):
		return http.StatusForbidden
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrInvalidResetToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyExports), errors.Is(err, lock.ErrNotObtained):
		return http.StatusServiceUnavailable
	case errors.As(err, &re):
		return http.StatusBadGateway
	case errors.As(err, &xe):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// authorizationCode distinguishes a wrong work ID from a missing one.
func authorizationCode(err error) string {
	if errors.Is(err, policy.ErrWorkIDMismatch) {
		return "AUTH001"
	}
	return "AUTH002"
}
