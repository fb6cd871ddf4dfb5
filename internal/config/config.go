// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/guard"
	"github.com/jeranaias/idlesync/internal/routes"
	"github.com/jeranaias/idlesync/internal/storage"
	"github.com/jeranaias/idlesync/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete idlesync configuration.
type Config struct {
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Sync     SyncConfig     `toml:"sync"`
	Guard    GuardConfig    `toml:"guard"`
	Log      LogConfig      `toml:"log"`
}

// TimeoutsConfig holds the idle policy. Warning is measured from the last
// activity, like Idle, and must be shorter.
type TimeoutsConfig struct {
	Idle      Duration `toml:"idle"`
	Warning   Duration `toml:"warning"`
	AdminIdle Duration `toml:"admin_idle"`
}

// SyncConfig selects where and how tabs share state.
type SyncConfig struct {
	// StateDir is shared by every tab of one "origin".
	StateDir string `toml:"state_dir"`
	// Store is the storage backend: file, sqlite or memory.
	Store string `toml:"store"`
	// Transport is the preferred bus: auto, unix or storage.
	Transport string `toml:"transport"`
	// PollInterval applies to polling watchers.
	PollInterval Duration `toml:"poll_interval"`
}

// GuardConfig holds navigation and logout settings.
type GuardConfig struct {
	ThrottleWindow Duration `toml:"throttle_window"`
	RedirectDelay  Duration `toml:"redirect_delay"`
	SignOutTimeout Duration `toml:"signout_timeout"`
	LoginPath      string   `toml:"login_path"`
	AdminLoginPath string   `toml:"admin_login_path"`
	AdminPrefix    string   `toml:"admin_prefix"`
	AuthPages      []string `toml:"auth_pages"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// File is the log file; empty logs to stderr.
	File string `toml:"file"`
}

// Duration is a time.Duration that reads and writes as "30m" in TOML.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with the stock policy.
func Default() *Config {
	p := guard.DefaultPolicy()
	r := routes.Default()
	return &Config{
		Timeouts: TimeoutsConfig{
			Idle:      D(p.Normal.Idle),
			Warning:   D(p.Normal.Warning),
			AdminIdle: D(p.Admin.Idle),
		},
		Sync: SyncConfig{
			StateDir:     "",
			Store:        string(storage.BackendFile),
			Transport:    activitysync.TransportAuto,
			PollInterval: D(storage.DefaultPollInterval),
		},
		Guard: GuardConfig{
			ThrottleWindow: D(p.ThrottleWindow),
			RedirectDelay:  D(p.RedirectDelay),
			SignOutTimeout: D(p.SignOutTimeout),
			LoginPath:      p.LoginPath,
			AdminLoginPath: p.AdminLoginPath,
			AdminPrefix:    r.AdminPrefix,
			AuthPages:      append([]string(nil), r.AuthPages...),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Timeouts.Idle.Duration == 0 {
		c.Timeouts.Idle = d.Timeouts.Idle
	}
	if c.Timeouts.AdminIdle.Duration == 0 {
		c.Timeouts.AdminIdle = d.Timeouts.AdminIdle
	}
	if c.Sync.Store == "" {
		c.Sync.Store = d.Sync.Store
	}
	if c.Sync.Transport == "" {
		c.Sync.Transport = d.Sync.Transport
	}
	if c.Sync.PollInterval.Duration == 0 {
		c.Sync.PollInterval = d.Sync.PollInterval
	}
	if c.Guard.SignOutTimeout.Duration == 0 {
		c.Guard.SignOutTimeout = d.Guard.SignOutTimeout
	}
	if c.Guard.LoginPath == "" {
		c.Guard.LoginPath = d.Guard.LoginPath
	}
	if c.Guard.AdminLoginPath == "" {
		c.Guard.AdminLoginPath = d.Guard.AdminLoginPath
	}
	if c.Guard.AdminPrefix == "" {
		c.Guard.AdminPrefix = d.Guard.AdminPrefix
	}
	if c.Guard.AuthPages == nil {
		c.Guard.AuthPages = d.Guard.AuthPages
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the idlesync directory: $IDLESYNC_HOME, or ~/.idlesync.
func ConfigDir() (string, error) {
	if dir := os.Getenv("IDLESYNC_HOME"); dir != "" {
		return util.ExpandPath(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".idlesync"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StateDir returns the configured state directory, defaulting to
// <config dir>/state.
func (c *Config) StateDir() (string, error) {
	if c.Sync.StateDir != "" {
		return util.ExpandPath(c.Sync.StateDir), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, then applies
// environment overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath reads a specific TOML file over the defaults. Keys the
// file does not mention keep their default values.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies IDLESYNC_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("IDLESYNC_STATE_DIR"); dir != "" {
		c.Sync.StateDir = dir
	}
	if store := os.Getenv("IDLESYNC_STORE"); store != "" {
		c.Sync.Store = store
	}
	if transport := os.Getenv("IDLESYNC_TRANSPORT"); transport != "" {
		c.Sync.Transport = transport
	}
	if level := os.Getenv("IDLESYNC_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# idlesync configuration file\n")
	buf.WriteString("# Generated by idlesync - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders cfg as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Timeouts.Idle.Duration <= 0 {
		add("timeouts.idle", "must be positive")
	}
	if c.Timeouts.Warning.Duration < 0 {
		add("timeouts.warning", "must not be negative")
	}
	if c.Timeouts.Warning.Duration > 0 && c.Timeouts.Idle.Duration <= c.Timeouts.Warning.Duration {
		add("timeouts.warning", "must be shorter than timeouts.idle (%s)", c.Timeouts.Idle.Duration)
	}
	if c.Timeouts.AdminIdle.Duration <= 0 {
		add("timeouts.admin_idle", "must be positive")
	}
	if _, err := storage.ParseBackend(c.Sync.Store); err != nil {
		add("sync.store", "%v", err)
	}
	if _, err := activitysync.ParseTransport(c.Sync.Transport); err != nil {
		add("sync.transport", "%v", err)
	}
	if c.Sync.PollInterval.Duration < 10*time.Millisecond {
		add("sync.poll_interval", "must be at least 10ms")
	}
	if c.Guard.ThrottleWindow.Duration < 0 {
		add("guard.throttle_window", "must not be negative")
	}
	if c.Guard.RedirectDelay.Duration < 0 {
		add("guard.redirect_delay", "must not be negative")
	}
	if c.Guard.SignOutTimeout.Duration <= 0 {
		add("guard.signout_timeout", "must be positive")
	}
	for field, p := range map[string]string{
		"guard.login_path":       c.Guard.LoginPath,
		"guard.admin_login_path": c.Guard.AdminLoginPath,
		"guard.admin_prefix":     c.Guard.AdminPrefix,
	} {
		if !strings.HasPrefix(p, "/") {
			add(field, "must start with '/'")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "unknown level %q", c.Log.Level)
	}
	return errors.Join(errs...)
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// Policy returns the guard policy described by c.
func (c *Config) Policy() guard.Policy {
	return guard.Policy{
		Normal:         guard.Timeouts{Idle: c.Timeouts.Idle.Duration, Warning: c.Timeouts.Warning.Duration},
		Admin:          guard.Timeouts{Idle: c.Timeouts.AdminIdle.Duration},
		LoginPath:      c.Guard.LoginPath,
		AdminLoginPath: c.Guard.AdminLoginPath,
		RedirectDelay:  c.Guard.RedirectDelay.Duration,
		SignOutTimeout: c.Guard.SignOutTimeout.Duration,
		ThrottleWindow: c.Guard.ThrottleWindow.Duration,
	}
}

// Classifier returns the route classifier described by c.
func (c *Config) Classifier() *routes.Classifier {
	return &routes.Classifier{
		AdminPrefix: c.Guard.AdminPrefix,
		AdminLogin:  c.Guard.AdminLoginPath,
		AuthPages:   append([]string(nil), c.Guard.AuthPages...),
	}
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get returns a value by its TOML path, e.g. "timeouts.idle".
func (c *Config) Get(key string) (any, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTOMLName(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	if d, ok := v.Interface().(Duration); ok {
		return d.Duration, nil
	}
	return v.Interface(), nil
}

func fieldByTOMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
