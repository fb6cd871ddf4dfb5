// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/clock"
)

// minDelay keeps rescheduled timers strictly in the future.
const minDelay = time.Millisecond

// Bus is the part of activitysync.Sync a Timer uses.
type Bus interface {
	PublishActivity()
	PublishLogout()
	Subscribe(handler activitysync.Handler) (unsubscribe func())
	LastActivityTimestamp() int64
}

// =============================================================================
// TIMER
// =============================================================================

// Timer is one tab's idle state machine. All transitions happen under
// mu; user callbacks and bus calls run after mu is released, so they may
// call back into the Timer.
type Timer struct {
	cfg   Config
	bus   Bus
	clock clock.Clock
	log   *slog.Logger

	mu           sync.Mutex
	state        State
	started      bool
	initialized  bool
	lastActivity time.Time
	warned       bool
	warnTimer    *clock.Timer
	logoutTimer  *clock.Timer
	// generation invalidates callbacks of timers that were replaced
	// after they had already been dispatched.
	generation  uint64
	unsubscribe func()
}

// New validates cfg and returns a stopped Timer. bus may be nil for a
// tab that cannot talk to its peers.
func New(cfg Config, bus Bus, clk clock.Clock, log *slog.Logger) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Timer{
		cfg:          cfg,
		bus:          bus,
		clock:        clk,
		log:          log,
		state:        StateActive,
		lastActivity: clk.Now(),
	}, nil
}

// Start subscribes to peer messages, rebuilds the idle baseline from
// the shared timestamp and arms the timers. After InitializeAsActive the
// shared timestamp can only move the baseline forward, so a stale value
// left by a lost write never ages a freshly mounted tab. A disabled Timer
// ignores it.
func (t *Timer) Start() {
	if !t.cfg.Enabled {
		return
	}

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	now := t.clock.Now()
	shared := t.sharedTimestamp()
	if t.initialized {
		if shared.After(t.lastActivity) && !shared.After(now) {
			t.lastActivity = shared
		}
	} else {
		t.lastActivity = now
		if !shared.IsZero() && !shared.After(now) {
			t.lastActivity = shared
		}
	}
	t.initialized = false
	t.state = StateActive
	t.warned = false
	t.armLocked(now)
	t.mu.Unlock()

	if t.bus != nil {
		unsubscribe := t.bus.Subscribe(t.handleMessage)
		t.mu.Lock()
		if t.started {
			t.unsubscribe = unsubscribe
			unsubscribe = nil
		}
		t.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	}

	t.log.Debug("IDLE_START", "mode", t.cfg.Mode, "idle_timeout", t.cfg.IdleTimeout, "warning", t.cfg.Warning)
}

// Stop cancels the timers and unsubscribes. The Timer can be started again.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopTimersLocked()
	t.started = false
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// InitializeAsActive treats the present as fresh activity. It is the
// explicit mount step: a tab that starts inside an authenticated session
// must not inherit idle time from a previous one. It also revives a
// LoggedOut Timer.
func (t *Timer) InitializeAsActive() {
	if !t.cfg.Enabled {
		return
	}

	t.mu.Lock()
	now := t.clock.Now()
	t.state = StateActive
	t.lastActivity = now
	t.warned = false
	if t.started {
		t.armLocked(now)
	} else {
		t.initialized = true
	}
	t.mu.Unlock()

	t.log.Debug("IDLE_INITIALIZE")
	t.publishActivity()
}

// Reset records local activity: re-arms the timers from now, persists the
// shared timestamp and informs the other tabs. A LoggedOut Timer ignores
// it.
func (t *Timer) Reset() {
	if !t.cfg.Enabled {
		return
	}

	t.mu.Lock()
	if t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	resumed := t.state == StateWarning
	t.state = StateActive
	t.lastActivity = now
	t.warned = false
	if t.started {
		t.armLocked(now)
	}
	t.mu.Unlock()

	if resumed {
		t.log.Info("IDLE_RESUME", "source", "local")
		t.callResume()
	}
	t.publishActivity()
}

// TriggerLogout logs out immediately. Pending timers are cancelled
// before OnLogout runs, so OnLogout fires exactly once even when a
// scheduled logout races with this call.
func (t *Timer) TriggerLogout() {
	if !t.cfg.Enabled || t.cfg.Mode != ModeFull {
		return
	}

	t.mu.Lock()
	if t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	t.enterLoggedOutLocked()
	t.mu.Unlock()

	t.log.Info("IDLE_LOGOUT", "reason", ReasonExplicit)
	t.callLogout(ReasonExplicit)
	if t.bus != nil {
		t.bus.PublishLogout()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastActivity returns the local idle baseline.
func (t *Timer) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// Remaining returns the time left before an idle logout, or zero once
// logged out. Activity-only timers report the full timeout.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateLoggedOut {
		return 0
	}
	if t.cfg.Mode != ModeFull {
		return t.cfg.IdleTimeout
	}
	remaining := t.cfg.IdleTimeout - t.clock.Now().Sub(t.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Mode returns the configured mode.
func (t *Timer) Mode() Mode { return t.cfg.Mode }

// Enabled reports whether the Timer does anything at all.
func (t *Timer) Enabled() bool { return t.cfg.Enabled }

// Config returns the configuration the Timer was built with.
func (t *Timer) Config() Config { return t.cfg }

// =============================================================================
// SCHEDULING
// =============================================================================

// armLocked replaces both timers with ones computed from lastActivity.
func (t *Timer) armLocked(now time.Time) {
	t.stopTimersLocked()
	if t.cfg.Mode != ModeFull || t.state == StateLoggedOut {
		return
	}
	gen := t.generation
	elapsed := now.Sub(t.lastActivity)

	if t.cfg.Warning > 0 && !t.warned {
		t.warnTimer = t.clock.AfterFunc(delay(t.cfg.Warning-elapsed), func() { t.onWarningTimer(gen) })
	}
	t.logoutTimer = t.clock.AfterFunc(delay(t.cfg.IdleTimeout-elapsed), func() { t.onLogoutTimer(gen) })
}

func (t *Timer) stopTimersLocked() {
	t.generation++
	t.warnTimer.Stop()
	t.logoutTimer.Stop()
	t.warnTimer = nil
	t.logoutTimer = nil
}

func delay(d time.Duration) time.Duration {
	if d < minDelay {
		return minDelay
	}
	return d
}

// baselineLocked folds in activity other tabs recorded in the shared
// timestamp without a message reaching us. It returns the baseline and
// whether it moved.
func (t *Timer) baselineLocked(now time.Time) (time.Time, bool) {
	if shared := t.sharedTimestamp(); shared.After(t.lastActivity) && !shared.After(now) {
		t.lastActivity = shared
		return shared, true
	}
	return t.lastActivity, false
}

func (t *Timer) onWarningTimer(gen uint64) {
	defer t.recoverPanic("warning timer")

	t.mu.Lock()
	if gen != t.generation || t.state != StateActive || t.warned {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	baseline, _ := t.baselineLocked(now)
	elapsed := now.Sub(baseline)
	if elapsed < t.cfg.Warning {
		t.warnTimer = t.clock.AfterFunc(delay(t.cfg.Warning-elapsed), func() { t.onWarningTimer(gen) })
		t.mu.Unlock()
		return
	}
	t.state = StateWarning
	t.warned = true
	remaining := t.cfg.IdleTimeout - elapsed
	if remaining < 0 {
		remaining = 0
	}
	t.mu.Unlock()

	t.log.Info("IDLE_WARNING", "remaining", remaining)
	if t.cfg.OnWarning != nil {
		t.cfg.OnWarning(remaining)
	}
}

func (t *Timer) onLogoutTimer(gen uint64) {
	defer t.recoverPanic("logout timer")

	t.mu.Lock()
	if gen != t.generation || t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	baseline, moved := t.baselineLocked(now)
	elapsed := now.Sub(baseline)
	if elapsed < t.cfg.IdleTimeout {
		if !moved {
			t.logoutTimer = t.clock.AfterFunc(delay(t.cfg.IdleTimeout-elapsed), func() { t.onLogoutTimer(gen) })
			t.mu.Unlock()
			return
		}
		// Shared activity counts like a peer message: back to Active
		// with a fresh warning stage.
		resumed := t.state == StateWarning
		t.state = StateActive
		t.warned = false
		t.armLocked(now)
		t.mu.Unlock()

		if resumed {
			t.log.Info("IDLE_RESUME", "source", "shared")
			t.callResume()
		}
		return
	}
	t.enterLoggedOutLocked()
	t.mu.Unlock()

	t.log.Info("IDLE_LOGOUT", "reason", ReasonIdle, "idle", elapsed)
	t.callLogout(ReasonIdle)
	if t.bus != nil {
		t.bus.PublishLogout()
	}
}

func (t *Timer) enterLoggedOutLocked() {
	t.stopTimersLocked()
	t.state = StateLoggedOut
}

// =============================================================================
// PEER MESSAGES
// =============================================================================

// handleMessage runs on the bus delivery goroutine.
func (t *Timer) handleMessage(m activitysync.Message) {
	defer t.recoverPanic("message")

	switch m.Type {
	case activitysync.KindActivity:
		t.absorbActivity(m)
	case activitysync.KindLogout:
		t.followLogout()
	}
}

// absorbActivity moves the baseline forward to the peer's activity. The
// activity is not re-published; the peer already informed everyone.
func (t *Timer) absorbActivity(m activitysync.Message) {
	t.mu.Lock()
	if !t.started || t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	at := clock.FromEpochMillis(m.Timestamp)
	if at.IsZero() || at.After(now) {
		at = now
	}
	if !at.After(t.lastActivity) {
		t.mu.Unlock()
		return
	}
	resumed := t.state == StateWarning
	t.lastActivity = at
	t.state = StateActive
	t.warned = false
	t.armLocked(now)
	t.mu.Unlock()

	if resumed {
		t.log.Info("IDLE_RESUME", "source", "peer")
		t.callResume()
	}
}

// followLogout applies a peer's logout without re-checking idle time and
// without broadcasting it again.
func (t *Timer) followLogout() {
	if t.cfg.Mode != ModeFull {
		return
	}

	t.mu.Lock()
	if !t.started || t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	t.enterLoggedOutLocked()
	t.mu.Unlock()

	t.log.Info("IDLE_LOGOUT", "reason", ReasonPeer)
	t.callLogout(ReasonPeer)
}

// =============================================================================
// HELPERS
// =============================================================================

func (t *Timer) sharedTimestamp() time.Time {
	if t.bus == nil {
		return time.Time{}
	}
	return clock.FromEpochMillis(t.bus.LastActivityTimestamp())
}

func (t *Timer) publishActivity() {
	if t.bus != nil {
		t.bus.PublishActivity()
	}
}

func (t *Timer) callLogout(reason LogoutReason) {
	defer t.recoverPanic("OnLogout")
	if t.cfg.OnLogout != nil {
		t.cfg.OnLogout(reason)
	}
}

func (t *Timer) callResume() {
	defer t.recoverPanic("OnResume")
	if t.cfg.OnResume != nil {
		t.cfg.OnResume()
	}
}

func (t *Timer) recoverPanic(where string) {
	if r := recover(); r != nil {
		t.log.Error("IDLE_PANIC", "where", where, "panic", r)
	}
}
