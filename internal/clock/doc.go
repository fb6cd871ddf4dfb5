// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package clock provides the injectable time source used by the idle
// timer, the activity bus and the guard.
//
// Production code uses Real(). Tests use Fake(), which only moves when
// Advance is called and fires AfterFunc callbacks synchronously, in
// deadline order, with Now() reporting each callback's own deadline.
// That makes "advance 150ms, expect the warning" style assertions exact.
package clock
