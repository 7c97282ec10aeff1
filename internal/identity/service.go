package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Config controls hashing cost and password reset behaviour.
type Config struct {
	BcryptCost    int
	ResetTokenTTL time.Duration

	// ResetURL is the page that consumes reset tokens; the token is appended
	// as the "token" query parameter.
	ResetURL string
}

// Service implements the account operations on top of the record store.
type Service struct {
	store  store.Store
	mailer Mailer
	cfg    Config
	now    func() time.Time
}

// NewService creates an identity service. A nil mailer logs messages.
func NewService(st store.Store, mailer Mailer, cfg Config) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &Service{
		store:  st,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CreateUser registers a new account and returns its principal.
func (s *Service) CreateUser(ctx context.Context, email, password string) (Principal, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Principal{}, ErrInvalidCredentials
	}
	if len(password) < MinPasswordLength {
		return Principal{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}

	uid := store.NewID()
	now := s.now().UTC()
	acct := account{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec, err := store.Encode(acct)
	if err != nil {
		return Principal{}, err
	}

	err = s.store.Commit(ctx,
		store.CreateIfAbsent(emailKey(email), store.Record{"uid": uid}),
		store.CreateIfAbsent(accountPath(uid), rec),
	)
	if errors.Is(err, store.ErrExists) {
		return Principal{}, ErrEmailTaken
	}
	if err != nil {
		return Principal{}, fmt.Errorf("create account: %w", err)
	}

	slog.Info("identity: account created", "uid", uid)
	return acct.principal(uid), nil
}

// SignIn verifies credentials and returns the matching principal.
func (s *Service) SignIn(ctx context.Context, email, password string) (Principal, error) {
	uid, err := s.uidForEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, err
	}

	acct, err := s.load(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return acct.principal(uid), nil
}

// Lookup returns the principal for uid.
func (s *Service) Lookup(ctx context.Context, uid string) (Principal, error) {
	acct, err := s.load(ctx, uid)
	if err != nil {
		return Principal{}, err
	}
	return acct.principal(uid), nil
}

// UpdateProfile applies non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (Principal, error) {
	acct, err := s.load(ctx, uid)
	if err != nil {
		return Principal{}, err
	}

	patch := store.Record{"updatedAt": s.now().UTC()}
	if upd.DisplayName != nil {
		acct.DisplayName = *upd.DisplayName
		patch["displayName"] = acct.DisplayName
	}
	if upd.PhotoURL != nil {
		acct.PhotoURL = *upd.PhotoURL
		patch["photoURL"] = acct.PhotoURL
	}

	if err := s.store.Update(ctx, accountPath(uid), patch); err != nil {
		return Principal{}, fmt.Errorf("update profile: %w", err)
	}
	return acct.principal(uid), nil
}

// SendPasswordReset mails a single-use reset link. Unknown addresses are
// accepted silently so the endpoint cannot be used to probe accounts.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	uid, err := s.uidForEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		slog.Debug("identity: password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newToken()
	if err != nil {
		return err
	}

	rec, err := store.Encode(resetToken{UID: uid, ExpiresAt: s.now().Add(s.cfg.ResetTokenTTL).UTC()})
	if err != nil {
		return err
	}
	if err := s.store.Commit(ctx, store.Set(resetPath(token), rec)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	return s.mailer.Send(ctx, Message{
		To:      normalizeEmail(email),
		Subject: "Reset your password",
		Body:    "Use this link to choose a new password: " + s.resetLink(token),
	})
}

// ResetPassword consumes token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	rec, found, err := s.store.Read(ctx, resetPath(token))
	if err != nil {
		return fmt.Errorf("read reset token: %w", err)
	}
	if !found {
		return ErrInvalidResetToken
	}

	var rt resetToken
	if err := store.Decode(rec, &rt); err != nil {
		return err
	}
	if s.now().After(rt.ExpiresAt) {
		_ = s.store.Delete(ctx, resetPath(token))
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	acctRec, found, err := s.store.Read(ctx, accountPath(rt.UID))
	if err != nil {
		return fmt.Errorf("read account: %w", err)
	}
	if !found {
		return ErrInvalidResetToken
	}
	acctRec["passwordHash"] = string(hash)
	acctRec["updatedAt"] = s.now().UTC()

	// The token is consumed in the same commit so it works exactly once.
	err = s.store.Commit(ctx,
		store.CompareAndSet(resetPath(token), rec, store.Record{"usedAt": s.now().UTC()}),
		store.Set(accountPath(rt.UID), acctRec),
		store.Remove(resetPath(token)),
	)
	if errors.Is(err, store.ErrConflict) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	slog.Info("identity: password reset", "uid", rt.UID)
	return nil
}

func (s *Service) uidForEmail(ctx context.Context, email string) (string, error) {
	rec, found, err := s.store.Read(ctx, emailKey(email))
	if err != nil {
		return "", fmt.Errorf("read email index: %w", err)
	}
	if !found {
		return "", ErrUserNotFound
	}
	uid, _ := rec["uid"].(string)
	if uid == "" {
		return "", ErrUserNotFound
	}
	return uid, nil
}

func (s *Service) load(ctx context.Context, uid string) (account, error) {
	if uid == "" {
		return account{}, ErrUserNotFound
	}
	rec, found, err := s.store.Read(ctx, accountPath(uid))
	if err != nil {
		return account{}, fmt.Errorf("read account: %w", err)
	}
	if !found {
		return account{}, ErrUserNotFound
	}
	var acct account
	if err := store.Decode(rec, &acct); err != nil {
		return account{}, err
	}
	return acct, nil
}

func (s *Service) resetLink(token string) string {
	if s.cfg.ResetURL == "" {
		return token
	}
	u, err := url.Parse(s.cfg.ResetURL)
	if err != nil {
		return s.cfg.ResetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// resetPath stores only a digest of the token.
func resetPath(token string) string {
	sum := sha256.Sum256([]byte(token))
	return store.Join(resetsCollection, hex.EncodeToString(sum[:]))
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
