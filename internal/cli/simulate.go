// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// simulate.go - Runs several guarded tabs against a fake clock and an
// in-process bus, and reports what each tab saw.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/routes"
	"github.com/jeranaias/idlesync/internal/session"
	"github.com/jeranaias/idlesync/internal/storage"
	"github.com/jeranaias/idlesync/internal/util"
)

// SimOptions describes one simulation run. Times are offsets from the
// moment every tab opens and are rounded to Step.
type SimOptions struct {
	Tabs    int
	Idle    time.Duration
	Warning time.Duration
	// Activity lists when the second tab (the first if alone) sees input.
	Activity []time.Duration
	// LogoutAt is when the first tab logs out by hand; zero means never.
	LogoutAt time.Duration
	Path     string
	Until    time.Duration
	Step     time.Duration
	Redirect time.Duration
	Logger   *slog.Logger
}

// SimEvent is one line of the timeline.
type SimEvent struct {
	AtMs   int64  `json:"at_ms"`
	Tab    string `json:"tab"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

var errSimStuck = errors.New("simulate: logout never reached its redirect delay")

func (o *SimOptions) setDefaults() {
	if o.Tabs <= 0 {
		o.Tabs = 3
	}
	if o.Idle == 0 {
		o.Idle = 200 * time.Millisecond
	}
	if o.Path == "" {
		o.Path = "/dashboard"
	}
	if o.Step <= 0 {
		o.Step = 10 * time.Millisecond
	}
	if o.Redirect == 0 {
		o.Redirect = 50 * time.Millisecond
	}
	if o.Until <= 0 {
		o.Until = o.Idle + 200*time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = util.DiscardLogger()
	}
}

func (o SimOptions) policy() guard.Policy {
	return guard.Policy{
		Normal:         guard.Timeouts{Idle: o.Idle, Warning: o.Warning},
		Admin:          guard.Timeouts{Idle: o.Idle},
		LoginPath:      "/login",
		AdminLoginPath: "/admin/login",
		RedirectDelay:  o.Redirect,
		SignOutTimeout: time.Second,
	}
}

// simClock reports each Sleep once its wake-up is scheduled, so the run
// never advances past a redirect before the sleeper is waiting for it.
type simClock struct {
	*clock.FakeClock
	sleeping chan struct{}
}

func (c simClock) Sleep(d time.Duration) {
	if d <= 0 {
		c.sleeping <- struct{}{}
		return
	}
	ch := c.After(d)
	c.sleeping <- struct{}{}
	<-ch
}

type simTab struct {
	name       string
	guard      *guard.Guard
	dialog     *simDialog
	loggedOut  bool
	redirectAt time.Time
}

type simulation struct {
	opts  SimOptions
	clk   simClock
	start time.Time

	mu     sync.Mutex
	events []SimEvent
}

func (s *simulation) record(tab, event, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SimEvent{
		AtMs:   s.clk.Now().Sub(s.start).Milliseconds(),
		Tab:    tab,
		Event:  event,
		Detail: detail,
	})
}

type simDialog struct {
	sim  *simulation
	name string

	mu      sync.Mutex
	visible bool
	actions guard.DialogActions
}

func (d *simDialog) Show(remaining time.Duration, actions guard.DialogActions) {
	d.mu.Lock()
	d.visible = true
	d.actions = actions
	d.mu.Unlock()
	d.sim.record(d.name, "warning", "logout in "+remaining.String())
}

func (d *simDialog) Hide() {
	d.mu.Lock()
	was := d.visible
	d.visible = false
	d.mu.Unlock()
	if was {
		d.sim.record(d.name, "warning closed", "")
	}
}

func (d *simDialog) logOutNow() bool {
	d.mu.Lock()
	visible, actions := d.visible, d.actions
	d.mu.Unlock()
	if !visible || actions.LogOutNow == nil {
		return false
	}
	actions.LogOutNow()
	return true
}

type simNavigator struct {
	sim  *simulation
	name string
}

func (n simNavigator) Navigate(path string) {
	n.sim.record(n.name, "redirect", path)
}

// Simulate runs the scenario and returns the timeline in time order.
func Simulate(opts SimOptions) ([]SimEvent, error) {
	opts.setDefaults()
	policy := opts.policy()
	if err := policy.Validate(); err != nil {
		return nil, NewValidationError("timeouts", fmt.Sprintf("idle %s warning %s", opts.Idle, opts.Warning), err.Error())
	}

	start := time.UnixMilli(1_700_000_000_000)
	sim := &simulation{
		opts:  opts,
		clk:   simClock{FakeClock: clock.Fake(start), sleeping: make(chan struct{}, opts.Tabs)},
		start: start,
	}

	store := storage.NewMemoryStore()
	defer store.Close()
	bus := activitysync.NewLocalBus()
	sessions := session.NewManager(store, sim.clk, opts.Logger)
	if _, err := sessions.Login("demo"); err != nil {
		return nil, err
	}

	tabs := make([]*simTab, 0, opts.Tabs)
	for i := 1; i <= opts.Tabs; i++ {
		name := fmt.Sprintf("tab-%d", i)
		tabSync := activitysync.New(activitysync.Options{
			ID:        name,
			Store:     store,
			Transport: bus.Endpoint(),
			Clock:     sim.clk,
			Logger:    opts.Logger,
		})
		defer tabSync.Close()

		tab := &simTab{name: name, dialog: &simDialog{sim: sim, name: name}}
		g, err := guard.New(guard.Options{
			Sync:       tabSync,
			Routes:     routes.Default(),
			Terminator: sessions,
			Dialog:     tab.dialog,
			Navigator:  simNavigator{sim: sim, name: name},
			Policy:     policy,
			Clock:      sim.clk,
			Logger:     opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		defer g.Close()
		tab.guard = g
		tabs = append(tabs, tab)
	}

	for _, tab := range tabs {
		if err := tab.guard.Navigate(opts.Path, true); err != nil {
			return nil, err
		}
		detail := opts.Path
		if tab.guard.Timer() == nil {
			detail += " (not monitored)"
		}
		sim.record(tab.name, "open", detail)
	}

	active := tabs[0]
	if len(tabs) > 1 {
		active = tabs[1]
	}

	for elapsed := time.Duration(0); ; elapsed += opts.Step {
		if elapsed > 0 {
			sim.clk.Advance(opts.Step)
		}
		if err := sim.settle(tabs); err != nil {
			return nil, err
		}

		for _, at := range opts.Activity {
			if at.Truncate(opts.Step) == elapsed {
				sim.record(active.name, "activity", "")
				active.guard.RecordActivity(guard.ActivityKey)
			}
		}
		if opts.LogoutAt > 0 && opts.LogoutAt.Truncate(opts.Step) == elapsed {
			sim.logOutNow(tabs[0])
		}
		if err := sim.settle(tabs); err != nil {
			return nil, err
		}

		if elapsed >= opts.Until {
			break
		}
	}
	if err := sim.drain(tabs); err != nil {
		return nil, err
	}

	sim.mu.Lock()
	defer sim.mu.Unlock()
	events := slices.Clone(sim.events)
	slices.SortStableFunc(events, func(a, b SimEvent) int {
		return int(a.AtMs - b.AtMs)
	})
	return events, nil
}

func (s *simulation) logOutNow(tab *simTab) {
	s.record(tab.name, "log out now", "")
	if tab.dialog.logOutNow() {
		return
	}
	if t := tab.guard.Timer(); t != nil {
		t.TriggerLogout()
	}
}

// settle records new logouts and completes redirects that fell due.
func (s *simulation) settle(tabs []*simTab) error {
	for _, tab := range tabs {
		t := tab.guard.Timer()
		if t == nil || tab.loggedOut || t.State() != idle.StateLoggedOut {
			continue
		}
		tab.loggedOut = true
		s.record(tab.name, "logged out", "")
		select {
		case <-s.clk.sleeping:
		case <-time.After(5 * time.Second):
			return errSimStuck
		}
		tab.redirectAt = s.clk.Now().Add(s.opts.Redirect)
	}
	now := s.clk.Now()
	for _, tab := range tabs {
		if !tab.redirectAt.IsZero() && !now.Before(tab.redirectAt) {
			tab.guard.Wait()
			tab.redirectAt = time.Time{}
		}
	}
	return nil
}

// drain lets redirects still pending at the end of the run complete, so
// that closing the guards does not wait on a sleeping logout.
func (s *simulation) drain(tabs []*simTab) error {
	for {
		if err := s.settle(tabs); err != nil {
			return err
		}
		var next time.Time
		for _, tab := range tabs {
			if !tab.redirectAt.IsZero() && (next.IsZero() || tab.redirectAt.Before(next)) {
				next = tab.redirectAt
			}
		}
		if next.IsZero() {
			return nil
		}
		s.clk.Advance(next.Sub(s.clk.Now()))
	}
}

// =============================================================================
// COMMAND
// =============================================================================

func runSimulate(args Args, stdout io.Writer) error {
	p := NewArgParser(args.Raw)
	var (
		opts SimOptions
		err  error
	)
	if opts.Tabs, err = p.FlagIntOrDefault("tabs", 3); err != nil {
		return err
	}
	if opts.Tabs < 1 || opts.Tabs > 32 {
		return NewValidationError("tabs", p.Flag("tabs"), "must be between 1 and 32")
	}
	if opts.Idle, err = p.FlagDurationOrDefault("idle", 200*time.Millisecond); err != nil {
		return err
	}
	if opts.Warning, err = p.FlagDurationOrDefault("warning", 100*time.Millisecond); err != nil {
		return err
	}
	if opts.LogoutAt, err = p.FlagDurationOrDefault("logout-at", 0); err != nil {
		return err
	}
	if opts.Until, err = p.FlagDurationOrDefault("until", 0); err != nil {
		return err
	}
	if opts.Activity, err = p.FlagDurations("activity"); err != nil {
		return err
	}
	opts.Path = p.FlagOrDefault("path", "/dashboard")
	if !args.Verbose {
		opts.Logger = util.DiscardLogger()
	} else {
		opts.Logger, _, _ = util.NewLogger("debug", "")
	}

	return OutputJSON(stdout, args.JSON, "simulate", func() (any, error) {
		events, err := Simulate(opts)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			printTimeline(stdout, opts, events)
		}
		return events, nil
	})
}

func printTimeline(w io.Writer, opts SimOptions, events []SimEvent) {
	opts.setDefaults()
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Simulating %d tabs: idle %s, warning %s", opts.Tabs, opts.Idle, opts.Warning)))
	for _, ev := range events {
		line := fmt.Sprintf("%7s  %-6s  %s", fmt.Sprintf("+%dms", ev.AtMs), ev.Tab, ev.Event)
		if ev.Detail != "" {
			line += " " + ev.Detail
		}
		switch ev.Event {
		case "logged out":
			line = ErrorStyle.Render(line)
		case "warning":
			line = WarningStyle.Render(line)
		case "redirect":
			line = DimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}
