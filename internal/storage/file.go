// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one file per key in a directory shared by every tab.
// Writes are atomic renames, so a concurrent reader sees either the old or
// the new value, never a partial one.
type FileStore struct {
	dir      string
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger

	mu     sync.RWMutex
	closed bool
	stops  []func()
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, clk clock.Clock, pollInterval time.Duration, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{dir: dir, clock: clk, interval: pollInterval, log: log}, nil
}

// Dir returns the directory holding the key files.
func (s *FileStore) Dir() string { return s.dir }

// fileName maps a key to a safe file name. Anything outside
// [A-Za-z0-9._-] becomes '_'.
func fileName(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return name
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

// Get reads the file for key.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set atomically replaces the file for key.
func (s *FileStore) Set(key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := util.AtomicWriteFile(s.path(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove deletes the file for key.
func (s *FileStore) Remove(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Close stops all watchers started on this store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}

// Watch reports changes to keys using fsnotify on the store directory.
// If fsnotify cannot be started the store falls back to polling.
func (s *FileStore) Watch(keys []string, fn func(Event)) (func(), error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	stop, err := s.watchNotify(keys, fn)
	if err != nil {
		s.log.Warn("STORAGE_WATCH_FALLBACK", "dir", s.dir, "reason", err)
		stop, err = NewPollWatcher(s, s.clock, s.interval, s.log).Watch(keys, fn)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return nil, ErrClosed
	}
	s.stops = append(s.stops, stop)
	s.mu.Unlock()
	return stop, nil
}

// watchNotify starts an fsnotify watcher. Values are read back after
// each event and deduplicated, since one rename can surface as several
// events depending on the platform.
func (s *FileStore) watchNotify(keys []string, fn func(Event)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	byName := make(map[string]string, len(keys))
	last := make(map[string]polledValue, len(keys))
	for _, key := range keys {
		byName[fileName(key)] = key
		v, ok, _ := s.get(key)
		last[key] = polledValue{value: v, exists: ok}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if util.IsTempFile(event.Name) {
					continue
				}
				key, tracked := byName[filepath.Base(event.Name)]
				if !tracked {
					continue
				}
				s.deliver(key, last, fn)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("STORAGE_WATCH_ERROR", "dir", s.dir, "error", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			watcher.Close()
			wg.Wait()
		})
	}, nil
}

// get reads a key without checking whether the store is closed.
func (s *FileStore) get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (s *FileStore) deliver(key string, last map[string]polledValue, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("STORAGE_WATCH_PANIC", "key", key, "panic", r)
		}
	}()

	v, ok, err := s.get(key)
	if err != nil {
		s.log.Debug("STORAGE_READ_ERROR", "key", key, "error", err)
		return
	}
	prev := last[key]
	if prev.exists == ok && prev.value == v {
		return
	}
	last[key] = polledValue{value: v, exists: ok}
	fn(Event{Key: key, Value: v, Deleted: !ok})
}
