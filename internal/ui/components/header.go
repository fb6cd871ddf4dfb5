// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/ui/styles"
	"github.com/jeranaias/idlesync/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the title bar: brand, current route, user and idle countdown.
type Header struct {
	Title     string
	Route     string
	User      string
	Transport string

	// Monitoring is false when the route is not watched for idleness.
	Monitoring bool
	Admin      bool
	State      idle.State
	Remaining  time.Duration

	Width int
	theme *styles.Theme
}

// NewHeader creates a Header with default values.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title: "idlesync",
		Width: 80,
		theme: themeOrDefault(theme),
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header on one line, truncating the route first when
// space runs out.
func (h *Header) View() string {
	width := h.Width
	if width < 40 {
		width = 40
	}
	inner := width - 2

	brand := h.theme.HeaderBrand.Render(h.Title)
	status := h.statusBadge()

	var right []string
	if h.User != "" {
		right = append(right, h.theme.HeaderSubtitle.Render(h.User))
	}
	if h.Transport != "" {
		right = append(right, h.theme.Muted.Render("via "+h.Transport))
	}
	right = append(right, status)
	rightText := strings.Join(right, "  ")

	room := inner - lipgloss.Width(brand) - lipgloss.Width(rightText) - 4
	route := ""
	if room > 3 {
		route = h.theme.HeaderRoute.Render(util.TruncateWidth(h.Route, room))
	}

	left := brand + "  " + route
	gap := inner - lipgloss.Width(left) - lipgloss.Width(rightText)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + rightText
	return h.theme.Header.Width(width).Render(line)
}

func (h *Header) statusBadge() string {
	if !h.Monitoring {
		return h.theme.StateOff.Render("[-] not monitored")
	}
	label := ""
	if h.Admin {
		label = "admin "
	}
	switch h.State {
	case idle.StateWarning:
		return h.theme.StateWarning.Render(styles.StatusIndicators.Warning + " " + label + "idle " + formatTimeRemaining(h.Remaining))
	case idle.StateLoggedOut:
		return h.theme.StateLoggedOut.Render(styles.StatusIndicators.Error + " logged out")
	default:
		return h.theme.StateActive.Render(styles.StatusIndicators.Success + " " + label + formatTimeRemaining(h.Remaining))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func themeOrDefault(theme *styles.Theme) *styles.Theme {
	if theme != nil {
		return theme
	}
	return styles.NewThemeWithProfile(termenv.Ascii, true)
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
