// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard decides, per navigation, whether and how a tab is idle
// monitored, and connects the idle timer to its side effects: the
// warning dialog, session termination, and the redirect to a login page.
//
// # Usage
//
//	g := guard.New(guard.Options{
//	    Sync:       sync,
//	    Routes:     routes.Default(),
//	    Terminator: sessions,
//	    Dialog:     overlay,
//	    Navigator:  app,
//	    Policy:     guard.DefaultPolicy(),
//	})
//	defer g.Close()
//
//	g.Navigate("/dashboard", true)
//	g.RecordActivity(guard.ActivityKey)
package guard
