// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package activitysync

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/idlesync/internal/util"
)

func TestReadBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{4, 80 * time.Millisecond},
		{7, 640 * time.Millisecond},
		{8, time.Second},
		{1000, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, readBackoff(tt.failures), "failures=%d", tt.failures)
	}
}

func TestUnixTransport_ReceiveBuffer(t *testing.T) {
	tr, err := NewUnixTransport(filepath.Join(shortTempDir(t), "bus"), "a", util.DiscardLogger())
	if err != nil {
		t.Skip("unix datagram sockets unavailable")
	}
	defer tr.Close()

	size, err := tr.ReceiveBuffer()
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestUnixTransport_LargeDatagram(t *testing.T) {
	bus := filepath.Join(shortTempDir(t), "bus")
	a, err := NewUnixTransport(bus, "a", util.DiscardLogger())
	if err != nil {
		t.Skip("unix datagram sockets unavailable")
	}
	defer a.Close()
	b, err := NewUnixTransport(bus, "b", util.DiscardLogger())
	require.NoError(t, err)
	defer b.Close()

	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, b.Receive(func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, payload)
	}))

	payload := bytes.Repeat([]byte("x"), 16*1024)
	require.NoError(t, a.Send(payload))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && bytes.Equal(got[0], payload)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnixTransport_CloseStopsReadLoop(t *testing.T) {
	tr, err := NewUnixTransport(filepath.Join(shortTempDir(t), "bus"), "a", util.DiscardLogger())
	if err != nil {
		t.Skip("unix datagram sockets unavailable")
	}
	require.NoError(t, tr.Receive(func([]byte) {}))

	closed := make(chan struct{})
	go func() {
		tr.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
