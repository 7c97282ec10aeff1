// Package web provides the JSON API of the fuel ledger.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/config"
	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/session"
	"github.com/JonMunkholm/fuelledger/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self'; connect-src 'self'"

// Server is the HTTP server of the ledger.
type Server struct {
	service  *core.Service
	sessions *session.Manager
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer wires the API routes to service and sessions.
func NewServer(service *core.Service, sessions *session.Manager, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(requestMetadata)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	requireSession := middleware.RequireSession(s.sessions, s.cfg.Session.CookieName)
	timeout := chimw.Timeout(s.cfg.Server.RequestTimeout)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newLimiter(s.cfg.Rate.AuthLimit).middleware)
			}
			r.Use(timeout)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/register", s.handleRegister)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			// Streams stay open for the life of the session.
			r.Get("/stream/{collection}", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Get("/session", s.handleSession)
				r.Post("/session/activity", s.handleActivity)
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)

				r.Get("/entries", s.handleListEntries)
				r.Post("/entries", s.handleCreateEntry)
				r.Get("/allocations", s.handleListAllocations)

				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", s.handleSearchInvoices)
					r.Post("/", s.handleCreateInvoice)
					r.Get("/counter", s.handleInvoiceCounter)
					r.Get("/{number}", s.handleGetInvoice)
					r.Get("/{number}/artifact", s.handleInvoiceArtifact)
				})

				r.Route("/ledger-invoices", func(r chi.Router) {
					r.Get("/", s.handleListLedgerGroups)
					r.Post("/", s.handleCreateLedgerInvoice)
					r.Post("/preview", s.handlePreviewLedgerInvoice)
					r.Get("/{owner}", s.handleGetLedgerGroup)
					r.Get("/{owner}/export", s.handleExportLedger)
				})

				r.Route("/trucks", func(r chi.Router) {
					r.Get("/", s.handleListTrucks)
					r.Post("/", s.handleCreateTruck)
					r.Get("/{id}", s.handleGetTruck)
					r.Put("/{id}", s.handleUpdateTruck)
					r.Delete("/{id}", s.handleDeleteTruck)
				})

				r.Route("/creditors", func(r chi.Router) {
					r.Get("/", s.handleListCreditors)
					r.Post("/", s.handleCreateCreditor)
					r.Get("/{id}", s.handleCreditorStatement)
					r.Patch("/{id}", s.handleRenameCreditor)
					r.Delete("/{id}", s.handleDeleteCreditor)
					r.Post("/{id}/expenses", s.handleAddCreditorExpense)
					r.Put("/{id}/expenses/{expenseID}", s.handleUpdateCreditorExpense)
					r.Delete("/{id}/expenses/{expenseID}", s.handleDeleteCreditorExpense)
				})

				r.Route("/expenses", func(r chi.Router) {
					r.Get("/", s.handleListExpenses)
					r.Post("/", s.handleCreateExpense)
					r.Put("/{id}", s.handleUpdateExpense)
					r.Delete("/{id}", s.handleDeleteExpense)
				})

				r.Get("/audit-log", s.handleAuditLog)
				r.Get("/audit-log/export", s.handleAuditLogExport)
			})
		})
	})

	// Browser download links. Unauthenticated clients are redirected to
	// the login page instead of getting a JSON error.
	s.router.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Use(timeout)
		r.Get("/downloads/invoices/{number}", s.handleInvoiceArtifact)
		r.Get("/downloads/ledger/{owner}", s.handleExportLedger)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // zero keeps event streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background work.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	l := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": s.sessions.ActiveGuards(),
		"exports":        s.service.Exports().Status(),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
