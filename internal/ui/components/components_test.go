// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/idle"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type actionLog struct {
	calls []string
}

func (l *actionLog) actions() guard.DialogActions {
	return guard.DialogActions{
		Stay:      func() { l.calls = append(l.calls, "stay") },
		LogOutNow: func() { l.calls = append(l.calls, "logout") },
		Dismiss:   func() { l.calls = append(l.calls, "dismiss") },
	}
}

// =============================================================================
// OVERLAY
// =============================================================================

func TestOverlay_ShowAndView(t *testing.T) {
	o := NewSessionTimeoutOverlay(nil)
	assert.Empty(t, o.View())

	var log actionLog
	o.Show(95*time.Second, log.actions())
	require.True(t, o.IsVisible())
	assert.Equal(t, ButtonStay, o.Focused())

	view := o.View()
	assert.Contains(t, view, "Are you still there?")
	assert.Contains(t, view, "1:35")
	for _, label := range []string{"Stay signed in", "Log out now", "Dismiss"} {
		assert.Contains(t, view, label)
	}
}

func TestOverlay_FocusCycles(t *testing.T) {
	o := NewSessionTimeoutOverlay(nil)
	o.Show(time.Minute, guard.DialogActions{})

	o, _ = o.Update(key("tab"))
	assert.Equal(t, ButtonLogOutNow, o.Focused())
	o, _ = o.Update(key("tab"))
	assert.Equal(t, ButtonDismiss, o.Focused())
	o, _ = o.Update(key("tab"))
	assert.Equal(t, ButtonStay, o.Focused())
	o, _ = o.Update(key("left"))
	assert.Equal(t, ButtonDismiss, o.Focused())
	o, _ = o.Update(key("shift+tab"))
	assert.Equal(t, ButtonLogOutNow, o.Focused())
}

func TestOverlay_Activate(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
		btn  OverlayButton
	}{
		{"enter on stay", []string{"enter"}, "stay", ButtonStay},
		{"space on log out", []string{"tab", " "}, "logout", ButtonLogOutNow},
		{"shortcut s", []string{"s"}, "stay", ButtonStay},
		{"shortcut o", []string{"o"}, "logout", ButtonLogOutNow},
		{"escape", []string{"esc"}, "dismiss", ButtonDismiss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log actionLog
			o := NewSessionTimeoutOverlay(nil)
			o.Show(time.Minute, log.actions())

			var cmd tea.Cmd
			for _, k := range tt.keys {
				o, cmd = o.Update(key(k))
			}
			require.NotNil(t, cmd)
			assert.False(t, o.IsVisible(), "choosing hides the overlay")
			assert.Empty(t, log.calls, "actions run in the command, not in Update")

			msg := cmd()
			assert.Equal(t, OverlayActionMsg{Button: tt.btn}, msg)
			assert.Equal(t, []string{tt.want}, log.calls)
		})
	}
}

func TestOverlay_IgnoresKeysWhenHidden(t *testing.T) {
	o := NewSessionTimeoutOverlay(nil)
	o, cmd := o.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, o.IsVisible())

	o.ShowLoggedOut()
	o, cmd = o.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.True(t, o.IsLoggedOut())
	assert.Contains(t, o.View(), "Session ended")
}

func TestOverlay_UpdateTimeClamps(t *testing.T) {
	o := NewSessionTimeoutOverlay(nil)
	o.Show(time.Minute, guard.DialogActions{})
	o.UpdateTime(-time.Second)
	assert.Zero(t, o.TimeRemaining())
	assert.Contains(t, o.View(), "0:00")
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0:00"},
		{0, "0:00"},
		{time.Millisecond, "0:01"},
		{59 * time.Second, "0:59"},
		{2 * time.Minute, "2:00"},
		{2*time.Minute + 500*time.Millisecond, "2:01"},
		{28 * time.Minute, "28:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTimeRemaining(tt.in), "%v", tt.in)
	}
}

// =============================================================================
// HEADER
// =============================================================================

func TestHeader_View(t *testing.T) {
	h := NewHeader(nil)
	h.SetWidth(80)
	h.Route = "/reports"
	h.User = "alice"
	h.Monitoring = true
	h.State = idle.StateActive
	h.Remaining = 30 * time.Minute

	view := h.View()
	assert.Contains(t, view, "idlesync")
	assert.Contains(t, view, "/reports")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "[OK] 30:00")
	assert.Equal(t, 80, lipgloss.Width(view))

	h.State = idle.StateWarning
	h.Remaining = 90 * time.Second
	assert.Contains(t, h.View(), "[!] idle 1:30")

	h.State = idle.StateLoggedOut
	assert.Contains(t, h.View(), "logged out")

	h.Monitoring = false
	assert.Contains(t, h.View(), "not monitored")
}

func TestHeader_TruncatesLongRoute(t *testing.T) {
	h := NewHeader(nil)
	h.SetWidth(50)
	h.Route = "/" + strings.Repeat("very-long-segment/", 10)
	h.Monitoring = true
	h.Admin = true
	h.Remaining = 15 * time.Minute

	view := h.View()
	assert.Equal(t, 50, lipgloss.Width(view))
	assert.Contains(t, view, "admin 15:00")
	assert.NotContains(t, view, h.Route)
}

// =============================================================================
// LOGIN FORM
// =============================================================================

func TestLoginForm(t *testing.T) {
	f := NewLoginForm(nil, "Sign in")
	assert.Contains(t, f.View(), "Sign in")

	f, cmd := f.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.Contains(t, f.View(), "enter a username")

	f, _ = f.Update(key("alice"))
	assert.Equal(t, "alice", f.Value())

	f, cmd = f.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, LoginSubmitMsg{User: "alice"}, cmd())
	assert.Empty(t, f.Value())
	assert.NotContains(t, f.View(), "enter a username")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 4))
	assert.Equal(t, "日本", padRight("日本", 4))
}
