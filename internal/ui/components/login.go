// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/idlesync/internal/ui/styles"
)

// LoginSubmitMsg is emitted when the user submits the sign-in form.
type LoginSubmitMsg struct {
	User string
}

// LoginForm is the sign-in screen shown on the login pages.
type LoginForm struct {
	input textinput.Model
	title string
	err   string
	theme *styles.Theme
}

// NewLoginForm creates a focused sign-in form.
func NewLoginForm(theme *styles.Theme, title string) LoginForm {
	in := textinput.New()
	in.Placeholder = "username"
	in.CharLimit = 64
	in.Width = 32
	in.Prompt = "> "
	in.Focus()
	return LoginForm{input: in, title: title, theme: themeOrDefault(theme)}
}

// SetError shows err under the input; "" clears it.
func (f *LoginForm) SetError(err string) {
	f.err = err
}

// Value returns the current input.
func (f LoginForm) Value() string {
	return f.input.Value()
}

// Update handles key input. Enter with a non-blank name emits LoginSubmitMsg.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		user := strings.TrimSpace(f.input.Value())
		if user == "" {
			f.err = "enter a username"
			return f, nil
		}
		f.err = ""
		f.input.Reset()
		return f, func() tea.Msg { return LoginSubmitMsg{User: user} }
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the form.
func (f LoginForm) View() string {
	parts := []string{
		f.theme.Title.Render(f.title),
		padRight("Username", 10) + f.input.View(),
	}
	if f.err != "" {
		parts = append(parts, "", f.theme.ErrorStyle.Render(styles.StatusIndicators.Error+" "+f.err))
	}
	parts = append(parts, "", f.theme.Muted.Render("enter to sign in"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
