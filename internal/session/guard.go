package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// signOutTimeout bounds the sign-out a guard performs on expiry.
const signOutTimeout = 5 * time.Second

// GuardState is the lifecycle state of a Guard.
type GuardState string

const (
	GuardActive  GuardState = "active"
	GuardExpired GuardState = "expired"
	GuardStopped GuardState = "stopped"
)

// Guard enforces the inactivity timeout of one session.
//
// Activity resets the timer to the full timeout. When the timer fires the
// guard signs the session out; a failing sign-out is logged and ignored and
// the guard still reports GuardExpired. Done is closed once the guard
// leaves GuardActive.
type Guard struct {
	sessionID string
	uid       string
	timeout   time.Duration
	expire    func(ctx context.Context, sessionID string) error

	// recheck reports idle time still left on the shared session record,
	// which other processes may have touched. Nil skips the check.
	recheck func(ctx context.Context, sessionID string) time.Duration

	mu          sync.Mutex
	state       GuardState
	timer       *time.Timer
	deadline    time.Time
	done        chan struct{}
	unsubscribe func()
}

func newGuard(s Session, timeout time.Duration, expire func(context.Context, string) error) *Guard {
	return &Guard{
		sessionID: s.ID,
		uid:       s.UID,
		timeout:   timeout,
		expire:    expire,
		state:     GuardActive,
		done:      make(chan struct{}),
	}
}

// start arms the timer to fire after first and subscribes to auth events
// so the guard stops when its session is signed out by someone else.
func (g *Guard) start(first time.Duration, subscribe func(func(AuthEvent)) func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if first < 0 {
		first = 0
	}
	g.deadline = time.Now().Add(first)
	g.timer = time.AfterFunc(first, g.fire)

	if subscribe != nil {
		g.unsubscribe = subscribe(func(ev AuthEvent) {
			if ev.SessionID == g.sessionID && ev.Kind == SignedOut {
				g.Stop()
			}
		})
	}
}

// Activity records qualifying user activity. It returns false when the
// guard is no longer active.
func (g *Guard) Activity() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GuardActive {
		return false
	}
	g.deadline = time.Now().Add(g.timeout)
	g.timer.Reset(g.timeout)
	return true
}

// Stop tears the guard down without signing out.
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.state != GuardActive {
		g.mu.Unlock()
		return
	}
	g.state = GuardStopped
	g.teardownLocked()
	g.mu.Unlock()
}

func (g *Guard) fire() {
	g.mu.Lock()
	if g.state != GuardActive {
		g.mu.Unlock()
		return
	}
	// A Reset racing with the timer can leave a stale fire; honour the
	// latest deadline instead.
	if remaining := time.Until(g.deadline); remaining > 0 {
		g.timer.Reset(remaining)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
	defer cancel()

	if g.recheck != nil {
		if remaining := g.recheck(ctx, g.sessionID); remaining > 0 {
			g.rearm(remaining)
			return
		}
	}

	g.mu.Lock()
	if g.state != GuardActive {
		g.mu.Unlock()
		return
	}
	g.state = GuardExpired
	g.teardownLocked()
	g.mu.Unlock()

	if err := g.expire(ctx, g.sessionID); err != nil {
		slog.Warn("session: sign-out after inactivity failed",
			"session_id", g.sessionID,
			"uid", g.uid,
			"error", err,
		)
		return
	}
	slog.Info("session: signed out after inactivity",
		"session_id", g.sessionID,
		"uid", g.uid,
		"timeout", g.timeout,
	)
}

// rearm pushes the deadline out after activity seen elsewhere.
func (g *Guard) rearm(remaining time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GuardActive {
		return
	}
	deadline := time.Now().Add(remaining)
	if deadline.After(g.deadline) {
		g.deadline = deadline
	}
	g.timer.Reset(time.Until(g.deadline))
	slog.Debug("session: idle timer extended by activity elsewhere",
		"session_id", g.sessionID,
		"remaining", remaining,
	)
}

func (g *Guard) teardownLocked() {
	if g.timer != nil {
		g.timer.Stop()
	}
	if g.unsubscribe != nil {
		// Unsubscribing may be triggered from inside an event callback.
		go g.unsubscribe()
		g.unsubscribe = nil
	}
	close(g.done)
}

// Done is closed when the guard expires or is stopped.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// State returns the current state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Remaining returns the time left before expiry, zero once inactive.
func (g *Guard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GuardActive {
		return 0
	}
	if d := time.Until(g.deadline); d > 0 {
		return d
	}
	return 0
}
