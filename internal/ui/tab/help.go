// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tab

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/session"
)

// helpMarkdown describes the tab's behavior under policy p.
func helpMarkdown(p guard.Policy) string {
	var b strings.Builder
	b.WriteString("# idlesync\n\n")
	b.WriteString("This tab shares its activity with every other tab that uses the same state directory.\n")
	b.WriteString("Working in any tab keeps all of them signed in.\n\n")
	b.WriteString("## Idle policy\n\n")
	fmt.Fprintf(&b, "- Pages: a warning after **%s**, sign-out after **%s** of inactivity.\n",
		session.FormatDuration(p.Normal.Warning), session.FormatDuration(p.Normal.Idle))
	fmt.Fprintf(&b, "- Admin pages: sign-out after **%s**, with no warning.\n", session.FormatDuration(p.Admin.Idle))
	fmt.Fprintf(&b, "- Sign-in pages (`%s`, `%s`) are not monitored.\n\n", p.LoginPath, p.AdminLoginPath)
	b.WriteString("## Warning dialog\n\n")
	b.WriteString("- **Stay signed in** resets the idle timer in every tab.\n")
	b.WriteString("- **Log out now** signs out every tab.\n")
	b.WriteString("- **Dismiss** closes the dialog. The sign-out still happens on time.\n")
	return b.String()
}

// renderMarkdown renders md for the terminal, falling back to the raw
// text when rendering fails.
func renderMarkdown(md string, width int) string {
	if width < 20 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
