package core

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAccountsService(t *testing.T) (*Service, *store.Memory, *identity.MemoryMailer) {
	t.Helper()
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	mailer := &identity.MemoryMailer{}
	ids := identity.NewService(mem, mailer, identity.Config{
		BcryptCost: bcrypt.MinCost,
		ResetURL:   "https://ledger.example.com/reset",
	})
	svc, err := NewService(Deps{Store: mem, Accounts: ids}, DefaultConfig())
	require.NoError(t, err)
	return svc, mem, mailer
}

func registration() RegisterInput {
	return RegisterInput{
		WorkID:          "IA007",
		Email:           "IA007@fleet.example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func TestRegister_StoresWorkID(t *testing.T) {
	svc, mem, _ := newAccountsService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, registration())
	require.NoError(t, err)
	assert.NotEmpty(t, u.UID)
	assert.Equal(t, "IA007", u.WorkID)

	stored, err := policy.NewWorkIDGate(mem).StoredWorkID(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, "IA007", stored)

	current, err := svc.CurrentUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, "IA007", current.WorkID)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		code   string
	}{
		{name: "bad work id", mutate: func(in *RegisterInput) { in.WorkID = "IB007" }, code: "VAL004"},
		{name: "three digit work id", mutate: func(in *RegisterInput) { in.WorkID = "IA00123" }, code: "VAL004"},
		{name: "email without work id", mutate: func(in *RegisterInput) { in.Email = "driver@fleet.example.com" }, code: "VAL005"},
		{name: "email binding is case sensitive", mutate: func(in *RegisterInput) { in.Email = "ia007@fleet.example.com" }, code: "VAL005"},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password, in.ConfirmPassword = "abc", "abc" }, code: "VAL008"},
		{name: "mismatched confirmation", mutate: func(in *RegisterInput) { in.ConfirmPassword = "secret2" }, code: "VAL007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem, _ := newAccountsService(t)
			in := registration()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.code, MapError(err).Code)
			assert.Zero(t, mem.Len())
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	svc, _, _ := newAccountsService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration())
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, DuplicateEmail, dup.Kind)
	assert.Equal(t, "DUP002", MapError(err).Code)
}

func TestPasswordReset(t *testing.T) {
	svc, _, mailer := newAccountsService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	err = svc.ForgotPassword(ctx, ForgotPasswordInput{WorkID: "IA008", Email: "IA007@fleet.example.com"})
	assert.Equal(t, "VAL005", MapError(err).Code)
	assert.Empty(t, mailer.Sent())

	require.NoError(t, svc.ForgotPassword(ctx, ForgotPasswordInput{WorkID: "IA007", Email: "IA007@fleet.example.com"}))
	sent := mailer.Sent()
	require.Len(t, sent, 1)

	token := resetToken(t, sent[0].Body)
	in := ResetPasswordInput{Token: token, Password: "newsecret", ConfirmPassword: "newsecret"}
	require.NoError(t, svc.ResetPassword(ctx, in))

	err = svc.ResetPassword(ctx, in)
	assert.ErrorIs(t, err, identity.ErrInvalidResetToken)
	assert.Equal(t, "SES003", MapError(err).Code)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newAccountsService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	name := "Jane Lado"
	updated, err := svc.UpdateProfile(ctx, u.UID, ProfileInput{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.DisplayName)
	assert.Equal(t, "IA007", updated.WorkID)

	bad := "not a url"
	_, err = svc.UpdateProfile(ctx, u.UID, ProfileInput{PhotoURL: &bad})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAccounts_NotConfigured(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	_, err := svc.Register(context.Background(), registration())
	assert.ErrorIs(t, err, ErrAccountsUnavailable)
}

func resetToken(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "https://")
	require.GreaterOrEqual(t, i, 0, "no link in %q", body)
	u, err := url.Parse(strings.TrimSpace(body[i:]))
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}
