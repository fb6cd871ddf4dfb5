// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import (
	"fmt"
	"sync"

	"github.com/jeranaias/idlesync/internal/storage"
)

// StorageTransport broadcasts by writing the payload to KeyEvent and
// receives through the store's change notifications. The writer's own
// watcher may observe the write; Sync drops those by Source.
type StorageTransport struct {
	store   storage.Store
	watcher storage.Watcher

	mu   sync.Mutex
	stop func()
}

// NewStorageTransport requires a store that also implements storage.Watcher.
func NewStorageTransport(store storage.Store) (*StorageTransport, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: no store", ErrTransportUnavailable)
	}
	watcher, ok := store.(storage.Watcher)
	if !ok {
		return nil, fmt.Errorf("%w: store %T cannot be watched", ErrTransportUnavailable, store)
	}
	return &StorageTransport{store: store, watcher: watcher}, nil
}

// Name returns "storage".
func (t *StorageTransport) Name() string { return TransportStorage }

// Send writes payload to KeyEvent.
func (t *StorageTransport) Send(payload []byte) error {
	return t.store.Set(KeyEvent, string(payload))
}

// Receive watches KeyEvent. Removals carry no message and are skipped.
func (t *StorageTransport) Receive(fn func(payload []byte)) error {
	stop, err := t.watcher.Watch([]string{KeyEvent}, func(ev storage.Event) {
		if ev.Deleted {
			return
		}
		fn([]byte(ev.Value))
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", KeyEvent, err)
	}
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()
	return nil
}

// Close stops the watch. The store itself belongs to the caller.
func (t *StorageTransport) Close() error {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}
