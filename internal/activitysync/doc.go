// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package activitysync is the cross-tab message bus and shared activity
// timestamp.
//
// Every tab owns a Sync. PublishActivity and PublishLogout inform the
// other tabs; a tab never receives its own messages, so the publisher
// must apply any local state change itself. The shared timestamp lives
// in a storage.Store under a fixed key and can be read at any time,
// which lets a tab that starts late recover the current idle baseline
// without waiting for a broadcast.
//
// # Transports
//
//   - unix: datagrams between sockets in <state_dir>/bus (preferred)
//   - storage: JSON written to the idlesync.event key and observed via
//     the store's Watcher (always available)
//   - local: an in-process LocalBus, for tests and simulations
//
// Transport failures never reach callers. A Sync without a working
// transport degrades to single-tab operation.
package activitysync
