// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tab is the interactive bubbletea front end of one idlesync tab.
//
// The guard runs on timer goroutines while bubbletea owns the UI loop, so
// the two meet through a Bridge: the guard calls the Bridge as its
// WarningDialog and Navigator, and the Bridge forwards each call to the
// program as a message, in order.
//
//	bridge := tab.NewBridge()
//	g, _ := guard.New(guard.Options{Dialog: bridge, Navigator: bridge, ...})
//	p := tea.NewProgram(tab.New(tab.Options{Guard: g, ...}))
//	bridge.Attach(p.Send)
//	_, err := p.Run()
//	bridge.Close()
package tab
