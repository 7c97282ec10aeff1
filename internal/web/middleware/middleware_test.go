package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/session"
)

type fakeResolver struct {
	token   string
	err     error
	touched []string
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (session.Session, identity.Principal, error) {
	if f.err != nil {
		return session.Session{}, identity.Principal{}, f.err
	}
	if token != f.token {
		return session.Session{}, identity.Principal{}, session.ErrInvalidToken
	}
	return session.Session{ID: "s1", UID: "u1"}, identity.Principal{UID: "u1", Email: "IA001@example.com"}, nil
}

func (f *fakeResolver) Touch(_ context.Context, sessionID string) error {
	f.touched = append(f.touched, sessionID)
	return nil
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := core.ActorFromContext(r.Context())
		if !ok || actor.UID != "u1" || actor.SessionID != "s1" {
			t.Errorf("actor = %+v, %v", actor, ok)
		}
		if auth, ok := FromContext(r.Context()); !ok || auth.Principal.Email != "IA001@example.com" {
			t.Errorf("FromContext = %+v, %v", auth, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		cookie     string
		wantStatus int
		wantTouch  bool
	}{
		{"bearer get", http.MethodGet, "/api/trucks", "Bearer good", "", http.StatusNoContent, false},
		{"cookie post", http.MethodPost, "/api/trucks", "", "good", http.StatusNoContent, true},
		{"bearer delete", http.MethodDelete, "/api/trucks/1", "Bearer good", "", http.StatusNoContent, true},
		{"missing api", http.MethodGet, "/api/trucks", "", "", http.StatusUnauthorized, false},
		{"bad token api", http.MethodPost, "/api/trucks", "Bearer bad", "", http.StatusUnauthorized, false},
		{"missing page", http.MethodGet, "/downloads/invoices/x", "", "", http.StatusSeeOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{token: "good"}
			h := RequireSession(res, "token")(okHandler(t))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := len(res.touched) == 1; got != tt.wantTouch {
				t.Errorf("touched = %v, want touch %v", res.touched, tt.wantTouch)
			}

			switch tt.wantStatus {
			case http.StatusUnauthorized:
				var body denialBody
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatal(err)
				}
				if body.Redirect != LoginPath || body.Code != "SES001" {
					t.Errorf("body = %+v", body)
				}
			case http.StatusSeeOther:
				if loc := rec.Header().Get("Location"); loc != LoginPath {
					t.Errorf("Location = %q, want %q", loc, LoginPath)
				}
			}
		})
	}
}

func TestRequireSession_StoreFailure(t *testing.T) {
	res := &fakeResolver{err: errors.New("redis: connection refused")}
	h := RequireSession(res, "token")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/trucks", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted keeps socket", []string{"10.0.0.0/8"}, "203.0.113.9:4000",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:4000"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.1.2.3:4000",
			map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"trusted forwarded for", []string{"10.0.0.0/8"}, "10.1.2.3:4000",
			map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"}, "198.51.100.7"},
		{"bare address entry", []string{"127.0.0.1"}, "127.0.0.1:5000",
			map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:4000",
			map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:4000"},
		{"invalid cidr skipped", []string{"bogus"}, "10.1.2.3:4000",
			map[string]string{"X-Real-IP": "198.51.100.7"}, "10.1.2.3:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetPrincipal(r.Context(), "u1", "s1")
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
