// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/routes"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// RouteClassifier classifies navigation paths.
type RouteClassifier interface {
	Classify(path string) routes.Class
}

// SessionTerminator ends the user's session.
type SessionTerminator interface {
	TerminateSession(ctx context.Context) error
}

// DialogActions are the choices offered by the warning dialog.
type DialogActions struct {
	// Stay keeps the session alive.
	Stay func()
	// LogOutNow logs out immediately.
	LogOutNow func()
	// Dismiss closes the dialog; the logout timer keeps running.
	Dismiss func()
}

// WarningDialog presents the idle warning.
type WarningDialog interface {
	Show(remaining time.Duration, actions DialogActions)
	Hide()
}

// Navigator moves the tab to another path.
type Navigator interface {
	Navigate(path string)
}

// Sync is the part of activitysync.Sync the guard uses.
type Sync interface {
	idle.Bus
	ClearLastActivityTimestamp()
}

// ActivityKind names a raw input source.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
	ActivityTouch   ActivityKind = "touch"
)

// =============================================================================
// GUARD
// =============================================================================

// Options wires a Guard.
type Options struct {
	Sync       Sync
	Routes     RouteClassifier
	Terminator SessionTerminator
	Dialog     WarningDialog
	Navigator  Navigator
	Policy     Policy
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Guard owns the idle timer of one tab and rebuilds it whenever a
// navigation changes the monitoring settings.
type Guard struct {
	opts     Options
	log      *slog.Logger
	throttle *idle.Throttle

	mu       sync.Mutex
	timer    *idle.Timer
	settings Settings
	mounted  bool
	path     string
	closed   bool

	logouts sync.WaitGroup
}

// New validates the policy and returns an unmounted Guard.
func New(opts Options) (*Guard, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Routes == nil {
		opts.Routes = routes.Default()
	}
	return &Guard{
		opts:     opts,
		log:      opts.Logger,
		throttle: idle.NewThrottle(opts.Policy.ThrottleWindow, opts.Clock),
	}, nil
}

// Navigate applies the policy to path. When the resulting settings
// differ from the current ones the old timer is stopped and, if
// monitoring is enabled, a new one is started and initialized as active.
func (g *Guard) Navigate(path string, authenticated bool) error {
	settings := ComputeSettings(g.opts.Routes.Classify(path), authenticated, g.opts.Policy)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.path = path
	if g.mounted && settings == g.settings {
		g.mu.Unlock()
		return nil
	}
	old := g.timer
	g.timer = nil
	g.settings = settings
	g.mounted = true
	g.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	g.hideDialog()

	g.log.Debug("GUARD_NAVIGATE", "path", path, "enabled", settings.Enabled, "admin", settings.Admin)
	if !settings.Enabled {
		return nil
	}

	t, err := g.buildTimer(settings)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed || g.settings != settings || g.timer != nil {
		g.mu.Unlock()
		return nil
	}
	g.timer = t
	g.mu.Unlock()

	// Mounting counts as activity. Initializing first pins the baseline
	// to now; Start only lets newer shared activity move it.
	t.InitializeAsActive()
	t.Start()
	return nil
}

func (g *Guard) buildTimer(s Settings) (*idle.Timer, error) {
	var t *idle.Timer
	cfg := idle.Config{
		IdleTimeout: s.IdleTimeout,
		Warning:     s.Warning,
		Mode:        s.Mode,
		Enabled:     s.Enabled,
		OnResume:    g.hideDialog,
		OnLogout: func(reason idle.LogoutReason) {
			g.onLogout(s, reason)
		},
	}
	if !s.Admin {
		cfg.OnWarning = func(remaining time.Duration) {
			g.onWarning(t, remaining)
		}
	}
	t, err := idle.New(cfg, g.opts.Sync, g.opts.Clock, g.log)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordActivity feeds one raw input event into the timer, at most once
// per throttle window.
func (g *Guard) RecordActivity(kind ActivityKind) {
	t := g.Timer()
	if t == nil {
		return
	}
	if !g.throttle.Allow() {
		return
	}
	g.log.Debug("GUARD_ACTIVITY", "kind", kind)
	t.Reset()
}

// Timer returns the active idle timer, or nil when monitoring is off.
func (g *Guard) Timer() *idle.Timer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer
}

// Settings returns the settings computed by the last navigation.
func (g *Guard) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// Path returns the last navigated path.
func (g *Guard) Path() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

// Wait blocks until in-flight logout work has finished.
func (g *Guard) Wait() {
	g.logouts.Wait()
}

// Close stops monitoring and waits for in-flight logout work.
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	t := g.timer
	g.timer = nil
	g.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	g.logouts.Wait()
}

// =============================================================================
// CALLBACKS
// =============================================================================

func (g *Guard) onWarning(t *idle.Timer, remaining time.Duration) {
	if g.opts.Dialog == nil || t == nil {
		return
	}
	g.opts.Dialog.Show(remaining, DialogActions{
		Stay: func() {
			g.hideDialog()
			t.Reset()
		},
		LogOutNow: func() {
			g.hideDialog()
			t.TriggerLogout()
		},
		Dismiss: g.hideDialog,
	})
}

// onLogout hides the dialog and finishes the logout in the background:
// the redirect must happen even when session termination fails.
func (g *Guard) onLogout(s Settings, reason idle.LogoutReason) {
	g.hideDialog()
	g.log.Info("GUARD_LOGOUT", "reason", reason, "admin", s.Admin)

	g.logouts.Add(1)
	go func() {
		defer g.logouts.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("GUARD_PANIC", "where", "logout", "panic", r)
			}
		}()
		g.finishLogout(s)
	}()
}

func (g *Guard) finishLogout(s Settings) {
	p := g.opts.Policy

	if g.opts.Terminator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.SignOutTimeout)
		err := g.opts.Terminator.TerminateSession(ctx)
		cancel()
		if err != nil {
			g.log.Warn("GUARD_SIGNOUT_FAILED", "error", err)
		}
	}

	if g.opts.Sync != nil {
		g.opts.Sync.ClearLastActivityTimestamp()
	}

	g.opts.Clock.Sleep(p.RedirectDelay)

	target := p.LoginPath
	if s.Admin {
		target = p.AdminLoginPath
	}
	if g.opts.Navigator != nil {
		g.log.Info("GUARD_REDIRECT", "to", target)
		g.opts.Navigator.Navigate(target)
	}
}

func (g *Guard) hideDialog() {
	if g.opts.Dialog != nil {
		g.opts.Dialog.Hide()
	}
}
