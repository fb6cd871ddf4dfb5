// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Shared setup for commands: config, logging, store and bus.
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/config"
	"github.com/jeranaias/idlesync/internal/session"
	"github.com/jeranaias/idlesync/internal/storage"
	"github.com/jeranaias/idlesync/internal/util"
)

// Env holds what a command needs. The store and the bus are opened on
// first use so that read-only commands never bind a socket.
type Env struct {
	Args       Args
	Config     *config.Config
	ConfigPath string
	StateDir   string
	Clock      clock.Clock
	Log        *slog.Logger

	store    storage.Store
	sync     *activitysync.Sync
	sessions *session.Manager
	closers  []io.Closer
}

// loadConfig reads --config when given and the default file otherwise.
// --state-dir wins over the file and the environment.
func loadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		path = util.ExpandPath(path)
		cfg, err = config.LoadFromPath(path)
	} else {
		if path, err = config.ConfigPath(); err != nil {
			return nil, "", &ConfigError{Err: err}
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, path, &ConfigError{Path: path, Err: err}
	}
	if args.StateDir != "" {
		cfg.Sync.StateDir = args.StateDir
	}
	return cfg, path, nil
}

// newEnv loads the configuration and builds the logger. The interactive
// tab owns the terminal, so logToFile sends its log to a file.
func newEnv(args Args, logToFile bool) (*Env, error) {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	level := cfg.Log.Level
	logFile := cfg.Log.File
	switch {
	case args.Verbose:
		level = "debug"
	case args.Quiet:
		level = "error"
	case !logToFile && logFile == "":
		// One-shot commands report through their output, not the log.
		level = "warn"
	}
	if logToFile && logFile == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		logFile = filepath.Join(dir, "idlesync.log")
	}
	log, closer, err := util.NewLogger(level, logFile)
	if err != nil {
		return nil, err
	}

	return &Env{
		Args:       args,
		Config:     cfg,
		ConfigPath: path,
		StateDir:   stateDir,
		Clock:      clock.Real(),
		Log:        log,
		closers:    []io.Closer{closer},
	}, nil
}

// Store opens the configured backend under the state directory.
func (e *Env) Store() (storage.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	backend, err := storage.ParseBackend(e.Config.Sync.Store)
	if err != nil {
		return nil, &ConfigError{Path: e.ConfigPath, Err: err}
	}
	if err := os.MkdirAll(e.StateDir, 0o700); err != nil {
		return nil, NewCommandError("state", "create state directory", err)
	}
	store, err := storage.Open(storage.Options{
		Backend:      backend,
		Dir:          e.StateDir,
		PollInterval: e.Config.Sync.PollInterval.Duration,
		Clock:        e.Clock,
		Logger:       e.Log,
	})
	if err != nil {
		return nil, NewCommandError("state", "open store", err)
	}
	e.store = store
	e.closers = append(e.closers, store)
	return store, nil
}

// Sync joins the activity bus as a tab named id ("" for a random id).
// The process holds one Sync, shared with anything else that joins.
func (e *Env) Sync(id string) (*activitysync.Sync, error) {
	if e.sync != nil {
		return e.sync, nil
	}
	store, err := e.Store()
	if err != nil {
		return nil, err
	}
	e.sync = activitysync.Shared(activitysync.Options{
		ID:       id,
		Store:    store,
		StateDir: e.StateDir,
		Prefer:   e.Config.Sync.Transport,
		Clock:    e.Clock,
		Logger:   e.Log,
	})
	// The bus goes before the store it may be watching.
	e.closers = append(e.closers, closerFunc(activitysync.CloseShared))
	return e.sync, nil
}

// Sessions returns the session manager backed by the shared store.
func (e *Env) Sessions() (*session.Manager, error) {
	if e.sessions != nil {
		return e.sessions, nil
	}
	store, err := e.Store()
	if err != nil {
		return nil, err
	}
	e.sessions = session.NewManager(store, e.Clock, e.Log)
	return e.sessions, nil
}

// Close releases everything in reverse order of opening.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
