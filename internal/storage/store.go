// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/idlesync/internal/clock"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// Store is a synchronous string key/value store shared by all tabs.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	// Close releases the store.
	Close() error
}

// Event describes a change to one key.
type Event struct {
	Key     string
	Value   string
	Deleted bool
}

// Watcher delivers change events for a fixed set of keys.
type Watcher interface {
	// Watch calls fn for each change to one of keys until stop is called.
	// Changes made by one writer are delivered in the order they were made.
	Watch(keys []string, fn func(Event)) (stop func(), err error)
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// DefaultPollInterval is how often a PollWatcher samples its keys.
const DefaultPollInterval = 250 * time.Millisecond

// Options configures Open.
type Options struct {
	Backend      Backend
	Dir          string
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Open creates the Store selected by opts.Backend. File and SQLite
// stores live under opts.Dir; the returned store also implements Watcher.
func Open(opts Options) (Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(filepath.Join(opts.Dir, "store"), opts.Clock, opts.PollInterval, opts.Logger)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(opts.Dir, "idlesync.db"), opts.Clock, opts.PollInterval, opts.Logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected file, sqlite or memory)", opts.Backend)
	}
}

// ParseBackend validates a backend name from configuration.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendFile, BackendSQLite, BackendMemory:
		return b, nil
	case "":
		return BackendFile, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (expected file, sqlite or memory)", name)
	}
}
