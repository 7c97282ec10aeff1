package core

// # Error Codes Reference
//
// This file turns technical errors into user-facing messages with a code
// support staff can look up. Typed domain errors are matched first; anything
// else falls through to a case-insensitive pattern table.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: use dd/mm/yyyy (ledger) or yyyy-mm-dd (expenses)
//	VAL002 - Invalid number: digits with an optional decimal point
//	VAL003 - Required field: a required field is empty
//	VAL004 - Invalid work ID: IA00 followed by one or two digits
//	VAL005 - Email binding: email must contain the work ID
//	VAL006 - Invalid value: any other format check
//	VAL007 - Password mismatch: password and confirmation differ
//	VAL008 - Weak password: shorter than the minimum length
//
// # Duplicate Errors (DUP001-DUP099)
//
//	DUP001 - TR800 number already exists
//	DUP002 - Email already registered
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Work ID does not match the one on file
//	AUTH002 - Work ID missing, or none on file for the user
//
// # Not Found (NF001)
//
//	NF001 - The record being changed does not exist
//
// # Database Errors (DB004-DB099)
//
//	DB004 - Connection refused      "connection refused"
//	DB005 - Connection reset        "connection reset"
//	DB006 - Timeout                 "timeout"
//	DB007 - Conflicting operations  "deadlock", "changed concurrently"
//	DB008 - Store failure           any other RemoteOperationError
//
// # Lock Errors (LOCK001)
//
//	LOCK001 - Invoice numbering busy "could not obtain lock"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Not signed in or session expired
//	SES002 - Invalid email or password
//	SES003 - Invalid or expired reset link
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Too many exports in progress
//	EXP002 - Workbook could not be generated
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled      "context canceled"
//	REQ002 - Request timed out      "context deadline exceeded"
//	RATE001 - Too many requests     "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error; check application logs for the technical error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/lock"
	"github.com/JonMunkholm/fuelledger/internal/session"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// fieldMessages maps FieldError messages to user messages.
var fieldMessages = map[string]UserMessage{
	MsgInvalidDate: {
		Message: "Invalid date format detected",
		Action:  "Enter the date as dd/mm/yyyy",
		Code:    "VAL001",
	},
	MsgInvalidISO: {
		Message: "Invalid date format detected",
		Action:  "Enter the date as yyyy-mm-dd",
		Code:    "VAL001",
	},
	MsgInvalidNumber: {
		Message: "Invalid number format detected",
		Action:  "Use digits with an optional decimal point",
		Code:    "VAL002",
	},
	MsgRequired: {
		Message: "Required field is empty",
		Action:  "Fill in every required field",
		Code:    "VAL003",
	},
	MsgInvalidWorkID: {
		Message: "Invalid work ID",
		Action:  "Work IDs look like IA001 through IA0099",
		Code:    "VAL004",
	},
	MsgEmailBinding: {
		Message: "Email does not match the work ID",
		Action:  "Use the work email that contains your work ID",
		Code:    "VAL005",
	},
	MsgPasswordMatch: {
		Message: "Passwords do not match",
		Action:  "Re-enter the same password in both fields",
		Code:    "VAL007",
	},
	MsgPasswordShort: {
		Message: "Password is too short",
		Action:  fmt.Sprintf("Use at least %d characters", identity.MinPasswordLength),
		Code:    "VAL008",
	},
}

var invalidValueMessage = UserMessage{
	Message: "Invalid value",
	Action:  "Check the highlighted fields",
	Code:    "VAL006",
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// Store connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "changed concurrently",
		msg: UserMessage{
			Message: "Someone else saved at the same time",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Locks and exports
	{
		pattern: "could not obtain lock",
		msg: UserMessage{
			Message: "Invoice numbering is busy",
			Action:  "Please wait a moment and try again",
			Code:    "LOCK001",
		},
	},
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "System is busy generating other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "artifact generation failed",
		msg: UserMessage{
			Message: "The workbook could not be generated",
			Action:  "Nothing was saved. Please try again",
			Code:    "EXP002",
		},
	},

	// Requests
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Check your connection and try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var (
	sessionMessage = UserMessage{
		Message: "You are not signed in or your session expired",
		Action:  "Sign in again",
		Code:    "SES001",
	}
	credentialsMessage = UserMessage{
		Message: "Invalid email or password",
		Action:  "Check your credentials and try again",
		Code:    "SES002",
	}
	resetTokenMessage = UserMessage{
		Message: "This reset link is invalid or has expired",
		Action:  "Request a new password reset email",
		Code:    "SES003",
	}
	storeMessage = UserMessage{
		Message: "The data service could not complete the request",
		Action:  "Please try again",
		Code:    "DB008",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var re *RemoteOperationError
	if errors.As(err, &re) {
		return storeMessage
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		ve *ValidationError
		de *DuplicateError
		ae *AuthorizationError
		ne *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		if len(ve.Fields) > 0 {
			if msg, ok := fieldMessages[ve.Fields[0].Message]; ok {
				return msg, true
			}
		}
		return invalidValueMessage, true

	case errors.As(err, &de):
		if de.Kind == DuplicateEmail {
			return UserMessage{
				Message: "An account with this email already exists",
				Action:  "Sign in or reset your password",
				Code:    "DUP002",
			}, true
		}
		return UserMessage{
			Message: "TR800 number already exists.",
			Action:  "Check the number on the TR800 form",
			Code:    "DUP001",
		}, true

	case errors.As(err, &ae):
		if authorizationCode(ae.Err) == "AUTH001" {
			return UserMessage{
				Message: "Work ID does not match",
				Action:  "Enter the work ID registered to your account",
				Code:    "AUTH001",
			}, true
		}
		return UserMessage{
			Message: "Work ID required",
			Action:  "Enter your work ID to confirm this change",
			Code:    "AUTH002",
		}, true

	case errors.As(err, &ne):
		return UserMessage{
			Message: "Record not found",
			Action:  "It may have been deleted. Refresh and try again",
			Code:    "NF001",
		}, true

	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidToken):
		return sessionMessage, true
	case errors.Is(err, identity.ErrInvalidCredentials):
		return credentialsMessage, true
	case errors.Is(err, identity.ErrInvalidResetToken):
		return resetTokenMessage, true
	case errors.Is(err, lock.ErrNotObtained):
		return errorPatternFor("could not obtain lock"), true
	}
	return UserMessage{}, false
}

func errorPatternFor(pattern string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.pattern == pattern {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
