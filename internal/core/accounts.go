package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

const usersCollection = "users"

// ErrAccountsUnavailable is returned when the service runs without an
// identity collaborator.
var ErrAccountsUnavailable = errors.New("accounts are not configured")

// RegisterInput creates an operator account.
type RegisterInput struct {
	WorkID          string `json:"workId" validate:"required,workid"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ForgotPasswordInput requests a reset link.
type ForgotPasswordInput struct {
	WorkID string `json:"workId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

// ResetPasswordInput completes a reset.
type ResetPasswordInput struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ProfileInput updates display fields. Nil leaves a field unchanged.
type ProfileInput struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL" validate:"omitempty,url"`
}

// User is the ledger's view of an operator.
type User struct {
	identity.Principal
	WorkID string `json:"workId,omitempty"`
}

// emailBindsWorkID is the identity check the ledger has always used: the
// address must contain the work ID verbatim.
func emailBindsWorkID(email, workID string) bool {
	return workID != "" && strings.Contains(email, workID)
}

// Register creates the identity and the users/{uid} record carrying the
// work ID used by the mutation gate.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if s.accounts == nil {
		return User{}, ErrAccountsUnavailable
	}
	if err := validateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	if !emailBindsWorkID(in.Email, in.WorkID) {
		return User{}, invalid("email", in.Email, MsgEmailBinding)
	}

	p, err := s.accounts.CreateUser(ctx, in.Email, in.Password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		return User{}, &DuplicateError{Kind: DuplicateEmail, Value: in.Email}
	case errors.Is(err, identity.ErrWeakPassword):
		return User{}, invalid("password", "", MsgPasswordShort)
	case err != nil:
		return User{}, remote("create account", err)
	}

	path := store.Join(usersCollection, p.UID)
	rec := store.Record{"workId": in.WorkID, "email": in.Email}
	if err := s.commit(ctx, store.CreateIfAbsent(path, rec)); err != nil {
		s.logger(ctx).Error("account created without user record",
			"uid", p.UID,
			"error", err,
		)
		return User{}, remote("create user record", err)
	}

	s.logger(ctx).Info("account registered", "uid", p.UID, "work_id", in.WorkID)
	s.recordAudit(ContextWithActor(ctx, Actor{UID: p.UID, Email: p.Email}), AuditLogParams{
		Action:   ActionAccountCreate,
		Path:     path,
		NewValue: rec,
	})
	return User{Principal: p, WorkID: in.WorkID}, nil
}

// ForgotPassword sends a reset link when the email carries the work ID.
// Whether the address has an account is not revealed.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	if s.accounts == nil {
		return ErrAccountsUnavailable
	}
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}
	if !emailBindsWorkID(in.Email, in.WorkID) {
		return invalid("email", in.Email, MsgEmailBinding)
	}
	if err := s.accounts.SendPasswordReset(ctx, in.Email); err != nil {
		return remote("send password reset", err)
	}
	return nil
}

// ResetPassword sets a new password using a single-use reset token.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if s.accounts == nil {
		return ErrAccountsUnavailable
	}
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}
	err := s.accounts.ResetPassword(ctx, in.Token, in.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidResetToken):
		return err
	case errors.Is(err, identity.ErrWeakPassword):
		return invalid("password", "", MsgPasswordShort)
	case err != nil:
		return remote("reset password", err)
	}
	s.recordAudit(ctx, AuditLogParams{Action: ActionPasswordReset, Path: "password_resets"})
	return nil
}

// CurrentUser returns the signed-in user with their work ID.
func (s *Service) CurrentUser(ctx context.Context, uid string) (User, error) {
	if s.accounts == nil {
		return User{}, ErrAccountsUnavailable
	}
	p, err := s.accounts.Lookup(ctx, uid)
	if err != nil {
		return User{}, err
	}
	return s.withWorkID(ctx, p)
}

// UpdateProfile changes the signed-in user's display name or photo URL.
func (s *Service) UpdateProfile(ctx context.Context, uid string, in ProfileInput) (User, error) {
	if s.accounts == nil {
		return User{}, ErrAccountsUnavailable
	}
	if err := validateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	p, err := s.accounts.UpdateProfile(ctx, uid, identity.ProfileUpdate{
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, AuditLogParams{Action: ActionProfileUpdate, Path: store.Join("accounts", uid)})
	return s.withWorkID(ctx, p)
}

func (s *Service) withWorkID(ctx context.Context, p identity.Principal) (User, error) {
	rec, found, err := s.store.Read(ctx, store.Join(usersCollection, p.UID))
	if err != nil {
		return User{}, remote("read user", err)
	}
	u := User{Principal: p}
	if found {
		u.WorkID, _ = rec["workId"].(string)
	}
	return u, nil
}
