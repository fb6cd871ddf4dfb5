// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/idlesync/internal/clock"
)

// =============================================================================
// POLLING WATCHER
// =============================================================================

// PollWatcher implements Watcher by sampling keys on a ticker. It is the
// fallback when a backend has no native change notification (SQLite) or
// when fsnotify cannot be started.
type PollWatcher struct {
	store    Store
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
}

// NewPollWatcher returns a PollWatcher over store.
func NewPollWatcher(store Store, clk clock.Clock, interval time.Duration, log *slog.Logger) *PollWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &PollWatcher{store: store, clock: clk, interval: interval, log: log}
}

type polledValue struct {
	value  string
	exists bool
}

// Watch snapshots the current values of keys and then reports every
// change observed on later ticks. Changes that happen and revert between
// two ticks are not seen.
func (p *PollWatcher) Watch(keys []string, fn func(Event)) (func(), error) {
	last := make(map[string]polledValue, len(keys))
	for _, key := range keys {
		v, ok, err := p.store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", key, err)
		}
		last[key] = polledValue{value: v, exists: ok}
	}

	ticker := p.clock.NewTicker(p.interval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.poll(keys, last, fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}, nil
}

func (p *PollWatcher) poll(keys []string, last map[string]polledValue, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("STORAGE_POLL_PANIC", "panic", r)
		}
	}()

	for _, key := range keys {
		v, ok, err := p.store.Get(key)
		if err != nil {
			p.log.Debug("STORAGE_POLL_ERROR", "key", key, "error", err)
			continue
		}
		prev := last[key]
		if prev.exists == ok && prev.value == v {
			continue
		}
		last[key] = polledValue{value: v, exists: ok}
		fn(Event{Key: key, Value: v, Deleted: !ok})
	}
}
