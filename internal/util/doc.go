// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across idlesync.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe writes (temp file, fsync, rename). The
//     file-backed store relies on it so a reader in another process never
//     observes a half-written timestamp or event payload.
//   - ExpandPath: "~/" expansion for configured paths.
//
// Logging:
//   - NewLogger: builds the slog logger every component receives.
//
// Display:
//   - TruncateWidth: column-aware truncation for the TUI header.
package util
