// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "value")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, IsTempFile(e.Name()), "temp file left behind: %s", e.Name())
	}
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile("/x/.tmp-12345"))
	assert.False(t, IsTempFile("/x/idlesync.lastActivity"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "state"), ExpandPath("~/state"))
	assert.Equal(t, "/absolute/path", ExpandPath("/absolute/path"))

	abs, _ := filepath.Abs("relative")
	assert.Equal(t, abs, ExpandPath("relative"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestNewLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "idlesync.log")
	logger, closer, err := NewLogger("debug", path)
	require.NoError(t, err)

	logger.Info("IDLE_TEST", "key", "value")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "IDLE_TEST")
	assert.Contains(t, string(data), "key=value")
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "short", TruncateWidth("short", 10))
	assert.Equal(t, "/dashb...", TruncateWidth("/dashboard/zones", 9))
	assert.Equal(t, "", TruncateWidth("anything", 0))
	assert.LessOrEqual(t, StringWidth(TruncateWidth("日本語のパス", 7)), 7)
}
