// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/storage"
)

// Key is the storage key of the session record.
const Key = "idlesync.session"

// ErrCorrupt is returned when the stored record cannot be parsed.
var ErrCorrupt = errors.New("session: corrupt record")

// =============================================================================
// SESSION RECORD
// =============================================================================

// Record is the persisted sign-in session.
type Record struct {
	ID   string `json:"id"`
	User string `json:"user"`

	// StartedAt is epoch milliseconds.
	StartedAt int64 `json:"started_at"`
}

// Started returns StartedAt as a time.
func (r Record) Started() time.Time {
	return clock.FromEpochMillis(r.StartedAt)
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager reads and writes the session record.
type Manager struct {
	store storage.Store
	clock clock.Clock
	log   *slog.Logger
}

// NewManager creates a manager over store. A nil clock means the real
// clock; a nil logger means slog.Default().
func NewManager(store storage.Store, clk clock.Clock, log *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, clock: clk, log: log}
}

// Login starts a new session for user, replacing any existing one.
func (m *Manager) Login(user string) (Record, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Record{}, errors.New("session: user must not be empty")
	}
	rec := Record{
		ID:        uuid.NewString(),
		User:      user,
		StartedAt: clock.EpochMillis(m.clock.Now()),
	}
	data, err := sonic.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(Key, string(data)); err != nil {
		return Record{}, fmt.Errorf("save session: %w", err)
	}
	m.log.Info("SESSION_LOGIN", "user", rec.User, "session_id", rec.ID)
	return rec, nil
}

// Current returns the active session. ok is false when nobody is signed in.
func (m *Manager) Current() (rec Record, ok bool, err error) {
	raw, found, err := m.store.Get(Key)
	if err != nil {
		return Record{}, false, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return Record{}, false, nil
	}
	if err := sonic.UnmarshalString(raw, &rec); err != nil || rec.ID == "" {
		return Record{}, false, ErrCorrupt
	}
	return rec, true, nil
}

// Authenticated reports whether a valid session exists. Read errors and
// corrupt records count as signed out.
func (m *Manager) Authenticated() bool {
	_, ok, err := m.Current()
	return ok && err == nil
}

// TerminateSession removes the session record. It returns ctx.Err() if
// ctx is done before the removal completes.
func (m *Manager) TerminateSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- m.store.Remove(Key)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("remove session: %w", err)
		}
		m.log.Info("SESSION_TERMINATED")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status summarizes a session for display.
type Status struct {
	Authenticated bool
	User          string
	SessionID     string
	StartTime     time.Time
	Duration      time.Duration
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() (Status, error) {
	rec, ok, err := m.Current()
	if err != nil || !ok {
		return Status{}, err
	}
	start := rec.Started()
	return Status{
		Authenticated: true,
		User:          rec.User,
		SessionID:     rec.ID,
		StartTime:     start,
		Duration:      m.clock.Now().Sub(start),
	}, nil
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	if d >= time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins == 0 {
			return strconv.Itoa(hours) + "h"
		}
		return strconv.Itoa(hours) + "h " + strconv.Itoa(mins) + "m"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return strconv.Itoa(mins) + "m"
	}
	return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
}
