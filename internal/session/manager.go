package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/google/uuid"
)

// DefaultIdleTimeout is used when Config.IdleTimeout is zero.
const DefaultIdleTimeout = 7 * time.Minute

// Config controls session lifetimes.
type Config struct {
	// IdleTimeout signs a session out after this long without activity.
	IdleTimeout time.Duration

	// TokenLifespan bounds how long an issued token is accepted at all.
	TokenLifespan time.Duration
}

// Manager is the single owner of live sessions and their guards.
type Manager struct {
	auth     Authenticator
	sessions Store
	tokens   *TokenIssuer
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	guards map[string]*Guard
	closed bool

	lmu       sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(AuthEvent)
}

// NewManager wires a session manager.
func NewManager(auth Authenticator, sessions Store, tokens *TokenIssuer, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.TokenLifespan <= 0 {
		cfg.TokenLifespan = 24 * time.Hour
	}
	return &Manager{
		auth:      auth,
		sessions:  sessions,
		tokens:    tokens,
		cfg:       cfg,
		now:       time.Now,
		guards:    make(map[string]*Guard),
		listeners: make(map[uint64]func(AuthEvent)),
	}
}

// IdleTimeout returns the configured inactivity timeout.
func (m *Manager) IdleTimeout() time.Duration {
	return m.cfg.IdleTimeout
}

// SignIn authenticates and opens a new session. It returns the session,
// the principal, the client token and the token's expiry.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, identity.Principal, string, time.Time, error) {
	p, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, identity.Principal{}, "", time.Time{}, err
	}

	now := m.now().UTC()
	s := Session{
		ID:           uuid.NewString(),
		UID:          p.UID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.sessions.Save(ctx, s, m.cfg.IdleTimeout); err != nil {
		return Session{}, identity.Principal{}, "", time.Time{}, fmt.Errorf("save session: %w", err)
	}

	token, expires, err := m.tokens.Issue(s)
	if err != nil {
		_ = m.sessions.Delete(ctx, s.ID)
		return Session{}, identity.Principal{}, "", time.Time{}, err
	}

	m.ensureGuard(s)
	m.emit(AuthEvent{Kind: SignedIn, SessionID: s.ID, UID: s.UID, At: now})

	slog.Info("session: signed in", "session_id", s.ID, "uid", s.UID)
	return s, p, token, expires, nil
}

// SignOut ends a session. Its guard stops through the SignedOut event.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	s, getErr := m.sessions.Get(ctx, sessionID)
	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.guards, sessionID)
	m.mu.Unlock()

	uid := s.UID
	if getErr != nil {
		uid = ""
	}
	m.emit(AuthEvent{Kind: SignedOut, SessionID: sessionID, UID: uid, At: m.now().UTC()})

	slog.Info("session: signed out", "session_id", sessionID, "uid", uid)
	return nil
}

// expire is called by a guard whose idle timer fired.
func (m *Manager) expire(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	g := m.guards[sessionID]
	delete(m.guards, sessionID)
	m.mu.Unlock()

	uid := ""
	if g != nil {
		uid = g.uid
	}
	// Listeners learn about the expiry even if the store delete fails; the
	// stored session lapses on its own TTL.
	defer m.emit(AuthEvent{Kind: Expired, SessionID: sessionID, UID: uid, At: m.now().UTC()})

	return m.sessions.Delete(ctx, sessionID)
}

// remaining returns the idle time left according to the session store.
// Another process sharing the store may have recorded activity this
// process never saw. Zero means the session is gone or idle.
func (m *Manager) remaining(ctx context.Context, sessionID string) time.Duration {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			slog.Warn("session: idle recheck failed", "session_id", sessionID, "error", err)
		}
		return 0
	}
	return m.cfg.IdleTimeout - m.now().Sub(s.LastActivity)
}

// Resolve validates a client token and returns the live session and its
// principal. A session without a guard (after a restart) gets a fresh one
// armed for whatever idle time it has left.
func (m *Manager) Resolve(ctx context.Context, token string) (Session, identity.Principal, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return Session{}, identity.Principal{}, err
	}

	s, err := m.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return Session{}, identity.Principal{}, err
	}
	if s.UID != claims.Subject {
		return Session{}, identity.Principal{}, ErrInvalidToken
	}

	g := m.ensureGuard(s)
	if g == nil || g.State() != GuardActive {
		return Session{}, identity.Principal{}, ErrNoSession
	}

	p, err := m.auth.Lookup(ctx, s.UID)
	if errors.Is(err, identity.ErrUserNotFound) {
		return Session{}, identity.Principal{}, ErrNoSession
	}
	if err != nil {
		return Session{}, identity.Principal{}, err
	}
	return s, p, nil
}

// Touch records qualifying activity, resetting the idle timer.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	g := m.guards[sessionID]
	m.mu.Unlock()

	if g == nil || !g.Activity() {
		return ErrNoSession
	}
	return m.sessions.Touch(ctx, sessionID, m.now().UTC(), m.cfg.IdleTimeout)
}

// Guard returns the guard of a live session.
func (m *Manager) Guard(sessionID string) (*Guard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guards[sessionID]
	return g, ok
}

func (m *Manager) ensureGuard(s Session) *Guard {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if g, ok := m.guards[s.ID]; ok {
		return g
	}

	remaining := m.cfg.IdleTimeout - m.now().Sub(s.LastActivity)
	g := newGuard(s, m.cfg.IdleTimeout, m.expire)
	g.recheck = m.remaining
	g.start(remaining, m.OnAuthStateChanged)
	m.guards[s.ID] = g
	return g
}

// OnAuthStateChanged registers fn for auth-state events. Callbacks run on
// the goroutine that caused the transition and must not block.
func (m *Manager) OnAuthStateChanged(fn func(AuthEvent)) func() {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

func (m *Manager) emit(ev AuthEvent) {
	m.lmu.RLock()
	fns := make([]func(AuthEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ActiveGuards returns the number of live guards.
func (m *Manager) ActiveGuards() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.guards)
}

// Close stops every guard. Stored sessions are left to their TTL so a
// restarted process can pick them up.
func (m *Manager) Close() {
	m.mu.Lock()
	guards := m.guards
	m.guards = make(map[string]*Guard)
	m.closed = true
	m.mu.Unlock()

	for _, g := range guards {
		g.Stop()
	}
	slog.Info("session manager closed", "guards_stopped", len(guards))
}
