// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the tab UI.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderBrand    lipgloss.Style
	HeaderRoute    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// STATE STYLES
	// ==========================================================================

	StateActive    lipgloss.Style
	StateWarning   lipgloss.Style
	StateLoggedOut lipgloss.Style
	StateOff       lipgloss.Style

	// ==========================================================================
	// BODY STYLES
	// ==========================================================================

	Title      lipgloss.Style
	Item       lipgloss.Style
	ItemActive lipgloss.Style
	Muted      lipgloss.Style
	ErrorStyle lipgloss.Style

	// ==========================================================================
	// BUTTONS
	// ==========================================================================

	Button        lipgloss.Style
	ButtonFocused lipgloss.Style

	Footer lipgloss.Style
}

// NewTheme creates a theme for the current terminal and makes its color
// profile the lipgloss default.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	lipgloss.SetColorProfile(profile)
	lipgloss.SetHasDarkBackground(isDark)
	return NewThemeWithProfile(profile, isDark)
}

// NewThemeWithProfile creates a theme without probing the terminal.
func NewThemeWithProfile(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderRoute = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StateActive = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StateWarning = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StateLoggedOut = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.StateOff = lipgloss.NewStyle().Foreground(TextMuted)

	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		MarginBottom(1)

	t.Item = lipgloss.NewStyle().
		Foreground(TextSecondary).
		PaddingLeft(2)

	t.ItemActive = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true).
		PaddingLeft(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Purple)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose)

	t.Button = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.ButtonFocused = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 2)

	t.Footer = lipgloss.NewStyle().
		Foreground(TextMuted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
}
