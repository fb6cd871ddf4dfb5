// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the signed-in session record in the shared store.
//
// Every tab of one state directory sees the same record, so signing out
// in one tab signs out all of them. The Manager implements the guard's
// SessionTerminator.
//
// # Usage
//
//	mgr := session.NewManager(store, clock.Real(), logger)
//	rec, err := mgr.Login("alice")
//	...
//	err = mgr.TerminateSession(ctx)
package session
