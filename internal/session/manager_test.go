// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/storage"
	"github.com/jeranaias/idlesync/internal/util"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *storage.MemoryStore, *clock.FakeClock) {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	clk := clock.Fake(epoch)
	return NewManager(store, clk, util.DiscardLogger()), store, clk
}

// blockingStore never completes Remove until release is closed.
type blockingStore struct {
	*storage.MemoryStore
	release chan struct{}
}

func (b *blockingStore) Remove(key string) error {
	<-b.release
	return b.MemoryStore.Remove(key)
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Remove(string) error { return errors.New("disk on fire") }

func TestLogin_PersistsRecord(t *testing.T) {
	m, store, _ := newManager(t)
	assert.False(t, m.Authenticated())

	rec, err := m.Login("  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.User)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, epoch, rec.Started().UTC())

	raw, ok, err := store.Get(Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"started_at"`)

	got, ok, err := m.Current()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.True(t, m.Authenticated())
}

func TestLogin_RejectsEmptyUser(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Login("   ")
	assert.Error(t, err)
	assert.False(t, m.Authenticated())
}

func TestLogin_ReplacesSession(t *testing.T) {
	m, _, _ := newManager(t)
	first, err := m.Login("alice")
	require.NoError(t, err)
	second, err := m.Login("bob")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, _, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, "bob", got.User)
}

func TestCurrent_Corrupt(t *testing.T) {
	m, store, _ := newManager(t)
	require.NoError(t, store.Set(Key, "{not json"))

	_, ok, err := m.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, m.Authenticated())

	require.NoError(t, store.Set(Key, `{"user":"x"}`))
	_, _, err = m.Current()
	assert.ErrorIs(t, err, ErrCorrupt, "a record without an id is not a session")
}

func TestTerminateSession(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Login("alice")
	require.NoError(t, err)

	require.NoError(t, m.TerminateSession(context.Background()))
	assert.False(t, m.Authenticated())

	require.NoError(t, m.TerminateSession(context.Background()), "signing out twice is fine")
}

func TestTerminateSession_Timeout(t *testing.T) {
	release := make(chan struct{})
	store := &blockingStore{MemoryStore: storage.NewMemoryStore(), release: release}
	m := NewManager(store, clock.Fake(epoch), util.DiscardLogger())
	_, err := m.Login("alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = m.TerminateSession(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestTerminateSession_CanceledContext(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Login("alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.TerminateSession(ctx), context.Canceled)
	assert.True(t, m.Authenticated(), "nothing is removed once the context is done")
}

func TestTerminateSession_StoreError(t *testing.T) {
	m := NewManager(failingStore{storage.NewMemoryStore()}, clock.Fake(epoch), util.DiscardLogger())
	_, err := m.Login("alice")
	require.NoError(t, err)
	err = m.TerminateSession(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestGetStatus(t *testing.T) {
	m, _, clk := newManager(t)

	st, err := m.GetStatus()
	require.NoError(t, err)
	assert.False(t, st.Authenticated)

	rec, err := m.Login("alice")
	require.NoError(t, err)
	clk.Advance(90 * time.Second)

	st, err = m.GetStatus()
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "alice", st.User)
	assert.Equal(t, rec.ID, st.SessionID)
	assert.Equal(t, 90*time.Second, st.Duration)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{0, "0s"},
		{45 * time.Second, "45s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m 30s"},
		{28 * time.Minute, "28m"},
		{time.Hour, "1h"},
		{time.Hour + 15*time.Minute + 10*time.Second, "1h 15m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}
