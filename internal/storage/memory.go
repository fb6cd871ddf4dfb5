// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryStore is an in-process Store. Watch callbacks run synchronously
// in the writer's goroutine after the write is applied and the lock is
// released, so tests observe the event as soon as Set returns and a
// callback may itself write to the store.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]*memoryWatch
	nextID   int
	closed   bool
}

type memoryWatch struct {
	keys map[string]bool
	fn   func(Event)
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		watchers: make(map[int]*memoryWatch),
	}
}

// Get returns the value for key.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value and notifies watchers when it changed.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old, existed := m.values[key]
	m.values[key] = value
	targets := m.targetsLocked(key)
	m.mu.Unlock()

	if existed && old == value {
		return nil
	}
	m.notify(targets, Event{Key: key, Value: value})
	return nil
}

// Remove deletes key and notifies watchers when it existed.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	_, existed := m.values[key]
	delete(m.values, key)
	targets := m.targetsLocked(key)
	m.mu.Unlock()

	if existed {
		m.notify(targets, Event{Key: key, Deleted: true})
	}
	return nil
}

// Watch registers fn for changes to keys.
func (m *MemoryStore) Watch(keys []string, fn func(Event)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	id := m.nextID
	m.nextID++
	m.watchers[id] = &memoryWatch{keys: set, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}, nil
}

// Close drops all values and watchers.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = map[string]string{}
	m.watchers = map[int]*memoryWatch{}
	return nil
}

func (m *MemoryStore) targetsLocked(key string) []func(Event) {
	var fns []func(Event)
	for i := 0; i < m.nextID; i++ {
		w, ok := m.watchers[i]
		if ok && w.keys[key] {
			fns = append(fns, w.fn)
		}
	}
	return fns
}

func (m *MemoryStore) notify(fns []func(Event), ev Event) {
	for _, fn := range fns {
		fn(ev)
	}
}
