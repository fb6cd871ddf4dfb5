// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tab

import (
	"strconv"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/routes"
	"github.com/jeranaias/idlesync/internal/session"
	"github.com/jeranaias/idlesync/internal/storage"
	"github.com/jeranaias/idlesync/internal/ui/components"
	"github.com/jeranaias/idlesync/internal/ui/styles"
	"github.com/jeranaias/idlesync/internal/util"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func testPolicy() guard.Policy {
	return guard.Policy{
		Normal:         guard.Timeouts{Idle: 200 * time.Millisecond, Warning: 100 * time.Millisecond},
		Admin:          guard.Timeouts{Idle: 100 * time.Millisecond},
		LoginPath:      "/login",
		AdminLoginPath: "/admin/login",
		RedirectDelay:  50 * time.Millisecond,
		SignOutTimeout: time.Second,
		ThrottleWindow: time.Second,
	}
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	t        *testing.T
	clk      *clock.FakeClock
	store    *storage.MemoryStore
	guard    *guard.Guard
	sessions *session.Manager
	msgs     chan tea.Msg
	model    Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clk:   clock.Fake(epoch),
		store: storage.NewMemoryStore(),
		msgs:  make(chan tea.Msg, 256),
	}
	bus := activitysync.NewLocalBus()
	sync := activitysync.New(activitysync.Options{
		ID:        "tab-a",
		Store:     h.store,
		Transport: bus.Endpoint(),
		Clock:     h.clk,
		Logger:    util.DiscardLogger(),
	})
	t.Cleanup(func() { sync.Close() })

	h.sessions = session.NewManager(h.store, h.clk, util.DiscardLogger())

	bridge := NewBridge()
	bridge.Attach(func(msg tea.Msg) { h.msgs <- msg })
	t.Cleanup(bridge.Close)

	g, err := guard.New(guard.Options{
		Sync:       sync,
		Routes:     routes.Default(),
		Terminator: h.sessions,
		Dialog:     bridge,
		Navigator:  bridge,
		Policy:     testPolicy(),
		Clock:      h.clk,
		Logger:     util.DiscardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	h.guard = g

	h.model = New(Options{
		Guard:     g,
		Sessions:  h.sessions,
		Policy:    testPolicy(),
		Transport: "local",
		Theme:     styles.NewThemeWithProfile(termenv.Ascii, true),
	})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

// send applies msg and returns the resulting command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// run applies msg and then the message produced by its command, if any.
func (h *harness) run(msg tea.Msg) {
	if cmd := h.send(msg); cmd != nil {
		if out := cmd(); out != nil {
			h.send(out)
		}
	}
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		switch k {
		case "enter":
			h.run(tea.KeyMsg{Type: tea.KeyEnter})
		case "down":
			h.run(tea.KeyMsg{Type: tea.KeyDown})
		case "tab":
			h.run(tea.KeyMsg{Type: tea.KeyTab})
		default:
			h.run(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

// pumpUntil feeds bridge messages into the model until cond holds.
func (h *harness) pumpUntil(cond func(Model) bool) {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond(h.model) {
		select {
		case msg := <-h.msgs:
			h.send(msg)
		case <-deadline:
			h.t.Fatalf("condition not reached; path=%q", h.model.Path())
		}
	}
}

func (h *harness) signIn(user string) {
	h.t.Helper()
	h.send(NavigateMsg{Path: "/login"})
	h.press(user, "enter")
	require.Equal(h.t, "/dashboard", h.model.Path())
	require.NotNil(h.t, h.guard.Timer())
}

// =============================================================================
// TESTS
// =============================================================================

func TestTab_StartsUnmonitoredWhenSignedOut(t *testing.T) {
	h := newHarness(t)
	h.send(NavigateMsg{Path: "/dashboard"})

	assert.Nil(t, h.guard.Timer())
	view := h.model.View()
	assert.Contains(t, view, "not monitored")
	assert.Contains(t, view, "/dashboard (current)")
}

func TestTab_SignInStartsMonitoring(t *testing.T) {
	h := newHarness(t)
	h.signIn("alice")

	assert.True(t, h.sessions.Authenticated())
	view := h.model.View()
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "via local")
	assert.Contains(t, view, "idle limit")
	assert.Equal(t, clock.EpochMillis(epoch), mustTimestamp(t, h.store))
}

func TestTab_LoginRejectsBlankName(t *testing.T) {
	h := newHarness(t)
	h.send(NavigateMsg{Path: "/login"})
	h.press("enter")
	assert.Equal(t, "/login", h.model.Path())
	assert.Contains(t, h.model.View(), "enter a username")
}

func TestTab_AdminLoginOpensAdminHome(t *testing.T) {
	h := newHarness(t)
	h.send(NavigateMsg{Path: "/admin/login"})
	assert.Contains(t, h.model.View(), "Administrator sign in")
	h.press("root", "enter")

	assert.Equal(t, "/admin", h.model.Path())
	assert.True(t, h.guard.Settings().Admin)
	assert.Contains(t, h.model.View(), "admin")
}

func TestTab_WarningStay(t *testing.T) {
	h := newHarness(t)
	h.signIn("alice")

	h.clk.Advance(100 * time.Millisecond)
	h.pumpUntil(func(m Model) bool { return m.overlay.IsVisible() })
	assert.Equal(t, idle.StateWarning, h.guard.Timer().State())
	assert.Contains(t, h.model.View(), "Are you still there?")

	h.press("tab")
	assert.Equal(t, components.ButtonLogOutNow, h.model.overlay.Focused())
	assert.Equal(t, idle.StateWarning, h.guard.Timer().State(), "moving focus is not activity")

	h.press("s")
	assert.False(t, h.model.overlay.IsVisible())
	assert.Equal(t, idle.StateActive, h.guard.Timer().State())

	h.clk.Advance(150 * time.Millisecond)
	assert.Equal(t, idle.StateWarning, h.guard.Timer().State(), "the timer restarted from the stay")
}

func TestTab_IdleLogoutRedirects(t *testing.T) {
	h := newHarness(t)
	h.signIn("alice")

	h.clk.Advance(200 * time.Millisecond)
	h.pumpUntil(func(m Model) bool { return m.overlay.IsLoggedOut() })
	assert.Contains(t, h.model.View(), "Session ended")

	h.clk.WaitForTimers(1)
	h.clk.Advance(testPolicy().RedirectDelay)
	h.pumpUntil(func(m Model) bool { return m.Path() == "/login" })

	assert.False(t, h.model.overlay.IsVisible())
	assert.False(t, h.sessions.Authenticated())
	assert.Nil(t, h.guard.Timer())
	assert.Contains(t, h.model.View(), "Sign in")
}

func TestTab_SignOutKey(t *testing.T) {
	h := newHarness(t)
	h.signIn("alice")

	h.press("x")
	assert.Equal(t, idle.StateLoggedOut, h.guard.Timer().State())

	h.clk.WaitForTimers(1)
	h.clk.Advance(testPolicy().RedirectDelay)
	h.pumpUntil(func(m Model) bool { return m.Path() == "/login" })
	assert.False(t, h.sessions.Authenticated())
}

func TestTab_SignOutWithoutTimer(t *testing.T) {
	h := newHarness(t)
	_, err := h.sessions.Login("alice")
	require.NoError(t, err)
	h.send(NavigateMsg{Path: "/signup"})
	require.Nil(t, h.guard.Timer())

	h.press("x")
	assert.Equal(t, "/login", h.model.Path())
	assert.False(t, h.sessions.Authenticated())
}

func TestTab_PageNavigation(t *testing.T) {
	h := newHarness(t)
	h.signIn("alice")

	h.press("down", "enter")
	assert.Equal(t, "/reports", h.model.Path())

	h.press("down", "down", "down", "enter")
	assert.Equal(t, "/admin/users", h.model.Path())
	assert.True(t, h.guard.Settings().Admin)
	assert.Contains(t, h.model.View(), "admin")
}

func TestTab_HelpAndQuit(t *testing.T) {
	h := newHarness(t)
	h.send(NavigateMsg{Path: "/dashboard"})

	h.press("?")
	assert.True(t, h.model.showHelp)
	assert.NotEmpty(t, h.model.helpText)
	assert.Contains(t, h.model.View(), "toggle help")

	h.press("?")
	assert.False(t, h.model.showHelp)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, h.model.View())
}

func TestHelpMarkdown(t *testing.T) {
	p := guard.DefaultPolicy()
	md := helpMarkdown(p)
	assert.Contains(t, md, "**28m**")
	assert.Contains(t, md, "**30m**")
	assert.Contains(t, md, "**15m**")
	assert.Contains(t, md, "`/login`")
	assert.NotEmpty(t, renderMarkdown(md, 0))
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBridge_DeliversInOrderAfterAttach(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	b.Show(time.Minute, guard.DialogActions{})
	b.Hide()
	b.Navigate("/login")

	got := make(chan tea.Msg, 3)
	b.Attach(func(msg tea.Msg) { got <- msg })

	want := []tea.Msg{
		WarningShowMsg{Remaining: time.Minute},
		WarningHideMsg{},
		NavigateMsg{Path: "/login"},
	}
	for i, w := range want {
		select {
		case msg := <-got:
			if show, ok := msg.(WarningShowMsg); ok {
				assert.Equal(t, time.Minute, show.Remaining, "message %d", i)
				continue
			}
			assert.Equal(t, w, msg, "message %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	b := NewBridge()
	b.Close()
	b.Close()
	b.Hide()
}

func mustTimestamp(t *testing.T, store storage.Store) int64 {
	t.Helper()
	raw, ok, err := store.Get(activitysync.KeyLastActivity)
	require.NoError(t, err)
	require.True(t, ok)
	ms, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	return ms
}
