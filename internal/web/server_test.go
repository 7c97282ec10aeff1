package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/config"
	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/session"
	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "secret1"

type harness struct {
	t        *testing.T
	srv      *Server
	svc      *core.Service
	sessions *session.Manager
	mem      *store.Memory
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Session:  config.SessionConfig{Secret: "test-secret", IdleTimeout: time.Minute, TokenLifespan: time.Hour, CookieName: "token"},
		Rate:     config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100, AuthLimit: 10},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newHarness(t *testing.T, opts ...func(*config.Config)) *harness {
	t.Helper()
	mem := store.NewMemory()
	return newHarnessWithStore(t, mem, mem, opts...)
}

// newHarnessWithStore serves the ledger from st, which must be backed by mem.
func newHarnessWithStore(t *testing.T, st store.Store, mem *store.Memory, opts ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ids := identity.NewService(st, &identity.MemoryMailer{}, identity.Config{
		BcryptCost: bcrypt.MinCost,
		ResetURL:   "https://ledger.example.com/reset",
	})
	svc, err := core.NewService(core.Deps{Store: st, Accounts: ids}, core.DefaultConfig())
	require.NoError(t, err)

	mgr := session.NewManager(ids, session.NewMemoryStore(),
		session.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TokenLifespan),
		session.Config{IdleTimeout: cfg.Session.IdleTimeout, TokenLifespan: cfg.Session.TokenLifespan})

	srv := NewServer(svc, mgr, cfg)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		mgr.Close()
		_ = mem.Close()
	})
	return &harness{t: t, srv: srv, svc: svc, sessions: mgr, mem: mem}
}

// do serves one request. body is JSON-encoded unless nil.
func (h *harness) do(method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

// signIn registers an operator with workID and returns a session token.
func (h *harness) signIn(workID string) string {
	h.t.Helper()
	email := workID + "@fleet.example.com"
	_, err := h.svc.Register(context.Background(), core.RegisterInput{
		WorkID:          workID,
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(h.t, err)

	rec := h.do(http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: testPassword}, "")
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResponse](h.t, rec).Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, contentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
}

func TestHealthz_CSPDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Security.EnableCSP = false })

	rec := h.do(http.MethodGet, "/healthz", nil, "")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestProtectedAPI_Unauthenticated(t *testing.T) {
	h := newHarness(t)

	for _, tok := range []string{"", "not-a-token"} {
		rec := h.do(http.MethodGet, "/api/trucks", nil, tok)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decode[map[string]string](t, rec)
		assert.Equal(t, "/login", body["redirect"])
		assert.Equal(t, "SES001", body["code"])
	}
}

func TestDownload_UnauthenticatedRedirects(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/downloads/invoices/MOK-PFI-600", nil, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil, "").Code)
	}
	rec := h.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per address")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	req := httptest.NewRequest(http.MethodPost, "/api/trucks", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "body", resp.Fields[0].Field)
}
