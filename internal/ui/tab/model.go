// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/session"
	"github.com/jeranaias/idlesync/internal/ui/components"
	"github.com/jeranaias/idlesync/internal/ui/styles"
)

// DefaultPages are the routes listed in the tab.
var DefaultPages = []string{
	"/dashboard",
	"/reports",
	"/settings",
	"/admin",
	"/admin/users",
	"/login",
	"/admin/login",
}

// DefaultTickInterval is how often the countdown refreshes.
const DefaultTickInterval = time.Second

// Options wires a Model.
type Options struct {
	Guard    *guard.Guard
	Sessions *session.Manager
	Policy   guard.Policy

	// Pages is the navigable route list; DefaultPages when empty.
	Pages []string
	// Start is the first route; the first page when empty.
	Start string
	// Home and AdminHome are opened after signing in.
	Home      string
	AdminHome string

	// Transport is shown in the header.
	Transport    string
	Theme        *styles.Theme
	TickInterval time.Duration
}

type tickMsg time.Time

type signOutDoneMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of one tab.
type Model struct {
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	header  *components.Header
	overlay components.SessionTimeoutOverlay
	login   components.LoginForm

	path     string
	user     string
	cursor   int
	showHelp bool
	helpText string
	status   string
	quitting bool

	width  int
	height int
}

// New creates the model. Navigation to the start page happens in Init.
func New(opts Options) Model {
	if len(opts.Pages) == 0 {
		opts.Pages = DefaultPages
	}
	if opts.Start == "" {
		opts.Start = opts.Pages[0]
	}
	if opts.Home == "" {
		opts.Home = "/dashboard"
	}
	if opts.AdminHome == "" {
		opts.AdminHome = "/admin"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	header := components.NewHeader(theme)
	header.Transport = opts.Transport

	return Model{
		opts:    opts,
		theme:   theme,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		header:  header,
		overlay: components.NewSessionTimeoutOverlay(theme),
		login:   components.NewLoginForm(theme, "Sign in"),
		width:   80,
		height:  24,
	}
}

// Init navigates to the start page and starts the countdown ticker.
func (m Model) Init() tea.Cmd {
	start := m.opts.Start
	return tea.Batch(
		func() tea.Msg { return NavigateMsg{Path: start} },
		m.tick(),
	)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Path returns the current route.
func (m Model) Path() string { return m.path }

// Overlay returns the warning overlay.
func (m Model) Overlay() components.SessionTimeoutOverlay { return m.overlay }

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.header.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.overlay.SetSize(msg.Width, m.bodyHeight())
		m.helpText = ""
		if m.showHelp {
			m.helpText = renderMarkdown(helpMarkdown(m.opts.Policy), m.width-4)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		kind := guard.ActivityPointer
		switch msg.Type {
		case tea.MouseWheelUp, tea.MouseWheelDown:
			kind = guard.ActivityScroll
		}
		m.opts.Guard.RecordActivity(kind)
		return m, nil

	case NavigateMsg:
		m.navigate(msg.Path)
		return m, nil

	case WarningShowMsg:
		m.overlay.Show(msg.Remaining, msg.Actions)
		m.refresh()
		return m, nil

	case WarningHideMsg:
		if !m.overlay.IsLoggedOut() {
			m.overlay.Hide()
		}
		m.refresh()
		return m, nil

	case components.OverlayActionMsg:
		m.refresh()
		return m, nil

	case components.LoginSubmitMsg:
		return m.signIn(msg.User)

	case signOutDoneMsg:
		if msg.err != nil {
			m.status = "sign-out failed: " + msg.err.Error()
		}
		m.navigate(m.opts.Policy.LoginPath)
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	// The open warning captures the keyboard so that moving between its
	// buttons does not count as activity.
	if m.overlay.IsVisible() && !m.overlay.IsLoggedOut() {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(msg)
		return m, cmd
	}

	m.opts.Guard.RecordActivity(guard.ActivityKey)

	if m.onLoginPage() {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || msg.Type == tea.KeyEsc {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		if m.helpText == "" {
			m.helpText = renderMarkdown(helpMarkdown(m.opts.Policy), m.width-4)
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.opts.Pages)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		m.navigate(m.opts.Pages[m.cursor])
	case key.Matches(msg, m.keys.SignOut):
		return m, m.signOut()
	}
	return m, nil
}

// navigate moves the tab to path and lets the guard apply its policy.
func (m *Model) navigate(path string) {
	m.path = path
	m.user = ""
	if rec, ok, err := m.opts.Sessions.Current(); err == nil && ok {
		m.user = rec.User
	}
	if err := m.opts.Guard.Navigate(path, m.user != ""); err != nil {
		m.status = "navigation failed: " + err.Error()
	}
	m.overlay.Hide()
	m.showHelp = false
	for i, p := range m.opts.Pages {
		if p == path {
			m.cursor = i
		}
	}
	if m.onLoginPage() {
		title := "Sign in"
		if path == m.opts.Policy.AdminLoginPath {
			title = "Administrator sign in"
		}
		m.login = components.NewLoginForm(m.theme, title)
	}
	m.refresh()
}

func (m Model) signIn(user string) (tea.Model, tea.Cmd) {
	if _, err := m.opts.Sessions.Login(user); err != nil {
		m.login.SetError(err.Error())
		return m, nil
	}
	target := m.opts.Home
	if m.path == m.opts.Policy.AdminLoginPath {
		target = m.opts.AdminHome
	}
	m.status = ""
	m.navigate(target)
	return m, nil
}

// signOut logs out every tab. With a running timer the timer owns the
// logout and the guard redirects; otherwise the session is ended here.
func (m Model) signOut() tea.Cmd {
	if t := m.opts.Guard.Timer(); t != nil && t.Mode() == idle.ModeFull {
		return func() tea.Msg {
			t.TriggerLogout()
			return nil
		}
	}
	sessions := m.opts.Sessions
	timeout := m.opts.Policy.SignOutTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return signOutDoneMsg{err: sessions.TerminateSession(ctx)}
	}
}

// refresh copies timer state into the header and the overlay.
func (m *Model) refresh() {
	h := m.header
	h.Route = m.path
	h.User = m.user

	t := m.opts.Guard.Timer()
	h.Monitoring = t != nil
	h.Admin = m.opts.Guard.Settings().Admin
	if t == nil {
		return
	}
	h.State = t.State()
	h.Remaining = t.Remaining()

	switch {
	case h.State == idle.StateLoggedOut && !m.overlay.IsLoggedOut():
		m.overlay.ShowLoggedOut()
	case m.overlay.IsVisible() && !m.overlay.IsLoggedOut():
		m.overlay.UpdateTime(h.Remaining)
	}
}

func (m Model) onLoginPage() bool {
	return m.path == m.opts.Policy.LoginPath || m.path == m.opts.Policy.AdminLoginPath
}

func (m Model) bodyHeight() int {
	h := m.height - 3
	if h < 5 {
		h = 5
	}
	return h
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the tab.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch {
	case m.overlay.IsVisible():
		body = m.overlay.View()
	case m.showHelp:
		body = m.helpText + "\n" + m.help.FullHelpView(m.keys.FullHelp())
	case m.onLoginPage():
		body = lipgloss.NewStyle().Padding(1, 2).Render(m.login.View())
	default:
		body = m.viewPages()
	}

	footer := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status != "" {
		footer = m.theme.ErrorStyle.Render(m.status) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		body,
		m.theme.Footer.Width(m.width).Render(footer),
	)
}

func (m Model) viewPages() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Pages"))
	b.WriteString("\n")
	for i, p := range m.opts.Pages {
		line := p
		if p == m.path {
			line += " " + m.theme.Muted.Render("(current)")
		}
		if i == m.cursor {
			b.WriteString(m.theme.ItemActive.Render(line))
		} else {
			b.WriteString(m.theme.Item.Render(line))
		}
		b.WriteString("\n")
	}
	s := m.opts.Guard.Settings()
	if s.Enabled {
		policy := fmt.Sprintf("idle limit %s", session.FormatDuration(s.IdleTimeout))
		if s.Warning > 0 {
			policy += fmt.Sprintf(", warning at %s", session.FormatDuration(s.Warning))
		}
		b.WriteString("\n" + m.theme.Muted.Render(policy))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
