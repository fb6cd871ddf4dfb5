// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the bubbletea widgets an idlesync tab is built
from.

# Components

Header (header.go) - One-line header with the route, the signed-in user,
the sync transport and the idle badge.

SessionTimeoutOverlay (session_timeout_overlay.go) - The idle warning with
"Stay signed in", "Log out now" and "Dismiss" buttons, and the notice shown
once every tab has been logged out.

LoginForm (login.go) - Username prompt shown on the login pages.

All components take a *styles.Theme; a nil theme falls back to a plain
ASCII theme so tests render without escape codes.
*/
package components
