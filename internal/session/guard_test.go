package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_ExpiresAfterInactivity(t *testing.T) {
	var calls atomic.Int32
	g := newGuard(Session{ID: "s1", UID: "u1"}, 30*time.Millisecond, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	g.start(30*time.Millisecond, nil)

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("guard did not expire")
	}
	assert.Equal(t, GuardExpired, g.State())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, g.Remaining())
}

func TestGuard_ActivityResetsToFullDuration(t *testing.T) {
	const timeout = 80 * time.Millisecond

	expiredAt := make(chan time.Time, 1)
	g := newGuard(Session{ID: "s1"}, timeout, func(context.Context, string) error {
		expiredAt <- time.Now()
		return nil
	})
	g.start(timeout, nil)

	var last time.Time
	for i := 0; i < 4; i++ {
		time.Sleep(timeout / 2)
		require.True(t, g.Activity())
		last = time.Now()
	}

	select {
	case at := <-expiredAt:
		assert.GreaterOrEqual(t, at.Sub(last), timeout-5*time.Millisecond,
			"expiry must come a full timeout after the last activity")
	case <-time.After(time.Second):
		t.Fatal("guard did not expire")
	}
	assert.False(t, g.Activity(), "activity after expiry is rejected")
}

func TestGuard_SignOutErrorIsIgnored(t *testing.T) {
	g := newGuard(Session{ID: "s1"}, 10*time.Millisecond, func(context.Context, string) error {
		return errors.New("network down")
	})
	g.start(10*time.Millisecond, nil)

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("guard did not expire")
	}
	assert.Equal(t, GuardExpired, g.State())
}

func TestGuard_StopPreventsExpiry(t *testing.T) {
	var calls atomic.Int32
	g := newGuard(Session{ID: "s1"}, 20*time.Millisecond, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	g.start(20*time.Millisecond, nil)
	g.Stop()
	g.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, GuardStopped, g.State())
}

func TestGuard_StopsOnForeignSignOut(t *testing.T) {
	var listener func(AuthEvent)
	subscribe := func(fn func(AuthEvent)) func() {
		listener = fn
		return func() {}
	}

	g := newGuard(Session{ID: "s1"}, time.Minute, func(context.Context, string) error { return nil })
	g.start(time.Minute, subscribe)
	require.NotNil(t, listener)

	listener(AuthEvent{Kind: SignedOut, SessionID: "other"})
	assert.Equal(t, GuardActive, g.State())

	listener(AuthEvent{Kind: SignedOut, SessionID: "s1"})
	assert.Equal(t, GuardStopped, g.State())
}
