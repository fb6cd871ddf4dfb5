// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import "sync"

var (
	sharedMu sync.Mutex
	shared   *Sync
)

// Shared returns the process-wide Sync, building it from opts on first
// use. Later calls ignore opts until CloseShared resets the singleton.
func Shared(opts Options) *Sync {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(opts)
	}
	return shared
}

// CloseShared closes the process-wide Sync. The next Shared call builds
// a fresh one.
func CloseShared() error {
	sharedMu.Lock()
	s := shared
	shared = nil
	sharedMu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
