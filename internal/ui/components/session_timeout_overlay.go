// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/ui/styles"
)

// =============================================================================
// IDLE WARNING OVERLAY
// =============================================================================

// OverlayButton is one of the warning dialog choices.
type OverlayButton int

const (
	ButtonStay OverlayButton = iota
	ButtonLogOutNow
	ButtonDismiss

	buttonCount
)

func (b OverlayButton) String() string {
	switch b {
	case ButtonStay:
		return "Stay signed in"
	case ButtonLogOutNow:
		return "Log out now"
	case ButtonDismiss:
		return "Dismiss"
	default:
		return fmt.Sprintf("OverlayButton(%d)", int(b))
	}
}

// SessionTimeoutOverlay is the idle warning dialog. It shows the time
// left before logout and offers Stay, Log out now and Dismiss.
type SessionTimeoutOverlay struct {
	// State
	visible   bool
	remaining time.Duration
	loggedOut bool
	focus     OverlayButton
	actions   guard.DialogActions

	// Dimensions
	width  int
	height int

	theme *styles.Theme
}

// NewSessionTimeoutOverlay creates a hidden overlay. A nil theme means
// the plain ASCII theme.
func NewSessionTimeoutOverlay(theme *styles.Theme) SessionTimeoutOverlay {
	return SessionTimeoutOverlay{theme: themeOrDefault(theme)}
}

// SetSize sets the overlay dimensions.
func (o *SessionTimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// =============================================================================
// STATE MANAGEMENT
// =============================================================================

// Show displays the warning with the given time remaining. Focus starts
// on Stay.
func (o *SessionTimeoutOverlay) Show(remaining time.Duration, actions guard.DialogActions) {
	o.visible = true
	o.loggedOut = false
	o.remaining = remaining
	o.actions = actions
	o.focus = ButtonStay
}

// ShowLoggedOut replaces the warning with the logged-out notice shown
// until the redirect happens.
func (o *SessionTimeoutOverlay) ShowLoggedOut() {
	o.visible = true
	o.loggedOut = true
	o.actions = guard.DialogActions{}
}

// Hide hides the overlay and forgets its actions.
func (o *SessionTimeoutOverlay) Hide() {
	o.visible = false
	o.loggedOut = false
	o.actions = guard.DialogActions{}
}

// UpdateTime updates the countdown.
func (o *SessionTimeoutOverlay) UpdateTime(remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	o.remaining = remaining
}

// IsVisible returns whether the overlay is currently visible.
func (o *SessionTimeoutOverlay) IsVisible() bool {
	return o.visible
}

// IsLoggedOut returns whether the overlay shows the logged-out notice.
func (o *SessionTimeoutOverlay) IsLoggedOut() bool {
	return o.visible && o.loggedOut
}

// Focused returns the focused button.
func (o *SessionTimeoutOverlay) Focused() OverlayButton {
	return o.focus
}

// TimeRemaining returns the current time remaining.
func (o *SessionTimeoutOverlay) TimeRemaining() time.Duration {
	return o.remaining
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// OverlayActionMsg reports that a dialog action has run.
type OverlayActionMsg struct {
	Button OverlayButton
}

// Init initializes the overlay (no-op for overlays).
func (o SessionTimeoutOverlay) Init() tea.Cmd {
	return nil
}

// Update handles messages for the overlay. Keys only act while the
// warning is visible.
func (o SessionTimeoutOverlay) Update(msg tea.Msg) (SessionTimeoutOverlay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height

	case tea.KeyMsg:
		if !o.visible || o.loggedOut {
			return o, nil
		}
		switch msg.String() {
		case "left", "shift+tab", "h":
			o.focus = (o.focus + buttonCount - 1) % buttonCount
		case "right", "tab", "l":
			o.focus = (o.focus + 1) % buttonCount
		case "enter", " ":
			return o.activate(o.focus)
		case "s":
			return o.activate(ButtonStay)
		case "o":
			return o.activate(ButtonLogOutNow)
		case "esc", "d":
			return o.activate(ButtonDismiss)
		}
	}
	return o, nil
}

// activate hides the overlay and runs the chosen action off the UI loop.
func (o SessionTimeoutOverlay) activate(b OverlayButton) (SessionTimeoutOverlay, tea.Cmd) {
	var fn func()
	switch b {
	case ButtonStay:
		fn = o.actions.Stay
	case ButtonLogOutNow:
		fn = o.actions.LogOutNow
	case ButtonDismiss:
		fn = o.actions.Dismiss
	}
	o.Hide()
	return o, func() tea.Msg {
		if fn != nil {
			fn()
		}
		return OverlayActionMsg{Button: b}
	}
}

// View renders the overlay, or "" when hidden.
func (o SessionTimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}
	if o.loggedOut {
		return o.viewLoggedOut()
	}
	return o.viewWarning()
}

// =============================================================================
// RENDER METHODS
// =============================================================================

func (o SessionTimeoutOverlay) dims() (width, height, maxWidth int) {
	width = o.width
	if width == 0 {
		width = 60
	}
	height = o.height
	if height == 0 {
		height = 24
	}
	maxWidth = width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}
	return width, height, maxWidth
}

func (o SessionTimeoutOverlay) viewWarning() string {
	width, height, maxWidth := o.dims()

	var parts []string

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	parts = append(parts, titleStyle.Render(styles.StatusIndicators.Warning+" Are you still there?"))
	parts = append(parts, "")

	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)
	parts = append(parts, msgStyle.Render(
		"You will be logged out in "+titleStyle.Render(formatTimeRemaining(o.remaining))+" due to inactivity."))
	parts = append(parts, "")

	buttons := make([]string, 0, buttonCount)
	for b := ButtonStay; b < buttonCount; b++ {
		style := o.theme.Button
		if b == o.focus {
			style = o.theme.ButtonFocused
		}
		buttons = append(buttons, style.Render(b.String()))
	}
	parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Center, buttons...))
	parts = append(parts, "")

	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true)
	parts = append(parts, hintStyle.Render("tab to move, enter to choose, esc to dismiss"))

	return o.place(width, height, maxWidth, styles.Amber, parts)
}

func (o SessionTimeoutOverlay) viewLoggedOut() string {
	width, height, maxWidth := o.dims()

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Rose).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)

	parts := []string{
		titleStyle.Render(styles.StatusIndicators.Error + " Session ended"),
		"",
		msgStyle.Render("You have been logged out in every tab."),
		"",
		lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("Redirecting to sign in..."),
	}
	return o.place(width, height, maxWidth, styles.Rose, parts)
}

func (o SessionTimeoutOverlay) place(width, height, maxWidth int, border lipgloss.TerminalColor, parts []string) string {
	content := lipgloss.JoinVertical(lipgloss.Center, parts...)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimeRemaining formats a duration as M:SS, rounding up so the
// countdown never shows 0:00 while time is left.
func formatTimeRemaining(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	totalSecs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", totalSecs/60, totalSecs%60)
}
