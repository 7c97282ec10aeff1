package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/logging"
	"github.com/JonMunkholm/fuelledger/internal/web/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IdleTimeout int       `json:"idleTimeoutSeconds"`
	User        core.User `json:"user"`
}

type sessionResponse struct {
	SessionID   string    `json:"sessionId"`
	User        core.User `json:"user"`
	SignedInAt  time.Time `json:"signedInAt"`
	IdleTimeout int       `json:"idleTimeoutSeconds"`
	Remaining   int       `json:"remainingSeconds"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := r.Context()
	sess, p, token, expires, err := s.sessions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, err := s.service.CurrentUser(ctx, p.UID)
	if err != nil {
		logging.WithPrincipal(logging.FromContext(ctx), p.UID, sess.ID).
			Warn("work id lookup failed after sign-in", "error", err)
		user = core.User{Principal: p}
	}

	http.SetCookie(w, s.sessionCookie(token, expires))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		ExpiresAt:   expires,
		IdleTimeout: int(s.sessions.IdleTimeout().Seconds()),
		User:        user,
	})
}

// handleLogout ends the caller's session if there is one. It always
// clears the cookie, so it also serves clients whose session already
// expired.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := middleware.Token(r, s.cfg.Session.CookieName); token != "" {
		if sess, _, err := s.sessions.Resolve(ctx, token); err == nil {
			if err := s.sessions.SignOut(ctx, sess.ID); err != nil {
				logging.FromContext(ctx).Warn("sign out failed", "session_id", sess.ID, "error", err)
			}
		}
	}

	http.SetCookie(w, s.sessionCookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	user, err := s.service.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in core.ForgotPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.ForgotPassword(r.Context(), in); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the account exists, a reset link is on its way",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in core.ResetPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.ResetPassword(r.Context(), in); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.FromContext(r.Context())

	user, err := s.service.CurrentUser(r.Context(), auth.Principal.UID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := sessionResponse{
		SessionID:   auth.Session.ID,
		User:        user,
		SignedInAt:  auth.Session.CreatedAt,
		IdleTimeout: int(s.sessions.IdleTimeout().Seconds()),
	}
	if g, ok := s.sessions.Guard(auth.Session.ID); ok {
		resp.Remaining = int(g.Remaining().Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleActivity is a heartbeat. RequireSession already counted the POST
// as activity.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.FromContext(r.Context())
	user, err := s.service.CurrentUser(r.Context(), auth.Principal.UID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in core.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	auth, _ := middleware.FromContext(r.Context())
	user, err := s.service.UpdateProfile(r.Context(), auth.Principal.UID, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	}
	return c
}
