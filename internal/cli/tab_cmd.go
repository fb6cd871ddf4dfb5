// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tab_cmd.go - The interactive tab.
package cli

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/routes"
	"github.com/jeranaias/idlesync/internal/ui/styles"
	"github.com/jeranaias/idlesync/internal/ui/tab"
)

// runTab opens one tab in the terminal and blocks until the user quits.
func runTab(env *Env) error {
	start := NewArgParser(env.Args.Raw).Subcommand()
	if start != "" {
		if !strings.HasPrefix(start, "/") {
			return NewValidationError("path", start, "must start with '/'")
		}
		start = routes.Normalize(start)
	}
	if err := RequiresTTY("open an interactive tab"); err != nil {
		return err
	}

	s, err := env.Sync("")
	if err != nil {
		return err
	}
	sessions, err := env.Sessions()
	if err != nil {
		return err
	}

	bridge := tab.NewBridge()
	defer bridge.Close()

	policy := env.Config.Policy()
	g, err := guard.New(guard.Options{
		Sync:       s,
		Routes:     env.Config.Classifier(),
		Terminator: sessions,
		Dialog:     bridge,
		Navigator:  bridge,
		Policy:     policy,
		Clock:      env.Clock,
		Logger:     env.Log,
	})
	if err != nil {
		return &ConfigError{Path: env.ConfigPath, Err: err}
	}
	defer g.Close()

	model := tab.New(tab.Options{
		Guard:     g,
		Sessions:  sessions,
		Policy:    policy,
		Start:     start,
		AdminHome: env.Config.Guard.AdminPrefix,
		Transport: s.TransportName(),
		Theme:     styles.NewTheme(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	bridge.Attach(p.Send)

	env.Log.Info("TAB_OPEN", "id", s.ID(), "transport", s.TransportName(), "state_dir", env.StateDir)
	if _, err := p.Run(); err != nil {
		return NewCommandError("tab", "run", err)
	}
	env.Log.Info("TAB_CLOSED", "id", s.ID())
	return nil
}
