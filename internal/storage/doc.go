// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the origin-scoped key/value cells that every
// idlesync tab shares, plus change notification for them.
//
// It plays the part browser localStorage plays for a web app: a handful
// of string values, synchronous reads and writes, and a "storage changed"
// event that other readers can observe.
//
// # Key Types
//
//   - Store: Get/Set/Remove on string keys
//   - Watcher: change events for a set of keys
//   - FileStore: one file per key in a shared directory, fsnotify events
//   - SQLiteStore: a kv table in a shared SQLite database, polled events
//   - MemoryStore: in-process map with synchronous events (tests, simulate)
//   - PollWatcher: polling fallback usable over any Store
//
// # Event Semantics
//
// Events fire only when a value actually changes, and they are delivered
// to every watcher of the backing storage, including watchers in the
// process that made the write. Callers that need "other tabs only"
// semantics filter on a sender id carried in the value.
package storage
