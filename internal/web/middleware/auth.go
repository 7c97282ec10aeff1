package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/logging"
	"github.com/JonMunkholm/fuelledger/internal/session"
)

// LoginPath is where unauthenticated clients are sent.
const LoginPath = "/login"

const sessionKey ctxKey = iota + 1

// SessionResolver is the part of the session manager the guard needs.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (session.Session, identity.Principal, error)
	Touch(ctx context.Context, sessionID string) error
}

// Authenticated is the session and user behind a request.
type Authenticated struct {
	Session   session.Session
	Principal identity.Principal
}

// FromContext returns the authenticated caller set by RequireSession.
func FromContext(ctx context.Context) (Authenticated, bool) {
	a, ok := ctx.Value(sessionKey).(Authenticated)
	return a, ok
}

// RequireSession admits only requests carrying a live session token, read
// from the named cookie or an "Authorization: Bearer" header.
//
// API requests without a session get 401 with a redirect hint; page
// requests are sent to LoginPath with 303. Every request that is not a
// safe read counts as session activity.
func RequireSession(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := Token(r, cookieName)
			if token == "" {
				deny(w, r, session.ErrNoSession)
				return
			}

			s, p, err := resolver.Resolve(ctx, token)
			if err != nil {
				deny(w, r, err)
				return
			}

			if !isSafeMethod(r.Method) {
				if err := resolver.Touch(ctx, s.ID); err != nil {
					deny(w, r, err)
					return
				}
			}

			ctx = context.WithValue(ctx, sessionKey, Authenticated{Session: s, Principal: p})
			ctx = core.ContextWithActor(ctx, core.Actor{UID: p.UID, Email: p.Email, SessionID: s.ID})
			SetPrincipal(ctx, p.UID, s.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Token returns the session token of r, preferring the Authorization header.
func Token(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// deny answers an unauthenticated request. Store failures while resolving
// are reported as such instead of signing the client out.
func deny(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())

	authErr := errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrInvalidToken)
	if !authErr {
		logger.Error("session lookup failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, denial(core.MapError(err), ""))
		return
	}

	logger.Debug("unauthenticated request", "path", r.URL.Path, "reason", err)
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusUnauthorized, denial(core.MapError(session.ErrNoSession), LoginPath))
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

type denialBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

func denial(msg core.UserMessage, redirect string) denialBody {
	return denialBody{
		Error:    msg.Message,
		Message:  msg.Message,
		Action:   msg.Action,
		Code:     msg.Code,
		Redirect: redirect,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
