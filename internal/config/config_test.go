// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/idlesync/internal/routes"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"IDLESYNC_STATE_DIR", "IDLESYNC_STORE", "IDLESYNC_TRANSPORT", "IDLESYNC_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.Timeouts.Idle.Duration)
	assert.Equal(t, 28*time.Minute, cfg.Timeouts.Warning.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Timeouts.AdminIdle.Duration)
	assert.Equal(t, "file", cfg.Sync.Store)
	assert.Equal(t, "auto", cfg.Sync.Transport)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[timeouts]
idle = "10m"
warning = "9m"

[sync]
store = "sqlite"
`)
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Idle.Duration)
	assert.Equal(t, 9*time.Minute, cfg.Timeouts.Warning.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Timeouts.AdminIdle.Duration)
	assert.Equal(t, "sqlite", cfg.Sync.Store)
	assert.Equal(t, "/login", cfg.Guard.LoginPath)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "permissions are tightened on load")
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"warning after idle", "[timeouts]\nidle = \"5m\"\nwarning = \"6m\"\n"},
		{"bad duration", "[timeouts]\nidle = \"soon\"\n"},
		{"unknown key", "[timeouts]\nidel = \"5m\"\n"},
		{"unknown store", "[sync]\nstore = \"redis\"\n"},
		{"unknown transport", "[sync]\ntransport = \"udp\"\n"},
		{"relative login path", "[guard]\nlogin_path = \"login\"\n"},
		{"bad log level", "[log]\nlevel = \"chatty\"\n"},
		{"not toml", "this is = = not toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsField(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.Warning = D(cfg.Timeouts.Idle.Duration)
	err := cfg.Validate()
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "timeouts.warning", verr.Field)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("IDLESYNC_STATE_DIR", "/tmp/idlesync-state")
	t.Setenv("IDLESYNC_STORE", "memory")
	t.Setenv("IDLESYNC_TRANSPORT", "storage")
	t.Setenv("IDLESYNC_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "/tmp/idlesync-state", cfg.Sync.StateDir)
	assert.Equal(t, "memory", cfg.Sync.Store)
	assert.Equal(t, "storage", cfg.Sync.Transport)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_UsesHomeOverride(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("IDLESYNC_HOME", home)

	cfg, err := Load()
	require.NoError(t, err, "missing file means defaults")
	assert.Equal(t, Default().Timeouts, cfg.Timeouts)

	dir, err := cfg.StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "state"), dir)

	cfg.Timeouts.Idle = D(time.Hour)
	require.NoError(t, Save(cfg))
	path, err := ConfigPath()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, reloaded.Timeouts.Idle.Duration)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Sync.StateDir = "/var/lib/idlesync"
	cfg.Guard.RedirectDelay = D(1500 * time.Millisecond)
	cfg.Guard.AuthPages = []string{"/login", "/sso/"}

	require.NoError(t, SaveTOML(cfg, path))
	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPolicyAndClassifier(t *testing.T) {
	cfg := Default()
	cfg.Guard.AuthPages = []string{"/sso/"}

	p := cfg.Policy()
	require.NoError(t, p.Validate())
	assert.Equal(t, 28*time.Minute, p.Normal.Warning)
	assert.Zero(t, p.Admin.Warning)

	c := cfg.Classifier()
	assert.Equal(t, routes.Class{AuthPage: true}, c.Classify("/sso/callback"))
	assert.Equal(t, routes.Class{}, c.Classify("/login"))
}

func TestGet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("timeouts.idle")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, v)

	v, err = cfg.Get("sync.store")
	require.NoError(t, err)
	assert.Equal(t, "file", v)

	_, err = cfg.Get("sync.nope")
	assert.Error(t, err)
	_, err = cfg.Get("log.level.deeper")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 90s ")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("ninety")))
}
