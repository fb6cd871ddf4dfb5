// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects what a Timer enforces.
type Mode int

const (
	// ModeFull warns, logs out, and follows peer logouts.
	ModeFull Mode = iota
	// ModeActivityOnly only shares activity.
	ModeActivityOnly
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeActivityOnly:
		return "activityOnly"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "full" or "activity-only" (any case, '-' or '_' optional).
func ParseMode(s string) (Mode, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "", "full":
		return ModeFull, nil
	case "activityonly":
		return ModeActivityOnly, nil
	default:
		return ModeFull, fmt.Errorf("unknown idle mode %q", s)
	}
}

// State is the Timer's position in the idle state machine.
type State int

const (
	StateActive State = iota
	StateWarning
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateLoggedOut:
		return "logged-out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LogoutReason says why OnLogout was called.
type LogoutReason int

const (
	// ReasonIdle: the idle timeout elapsed in this tab.
	ReasonIdle LogoutReason = iota
	// ReasonExplicit: TriggerLogout was called.
	ReasonExplicit
	// ReasonPeer: another tab broadcast a logout.
	ReasonPeer
)

func (r LogoutReason) String() string {
	switch r {
	case ReasonIdle:
		return "idle"
	case ReasonExplicit:
		return "explicit"
	case ReasonPeer:
		return "peer"
	default:
		return fmt.Sprintf("LogoutReason(%d)", int(r))
	}
}

// ErrInvalidConfig is returned by New for durations that cannot work.
var ErrInvalidConfig = errors.New("idle: invalid config")

// Config describes one monitoring session.
type Config struct {
	// IdleTimeout is the idle time after which the tab logs out.
	IdleTimeout time.Duration
	// Warning is the idle time at which OnWarning fires. Zero disables
	// the warning stage.
	Warning time.Duration
	Mode    Mode
	Enabled bool

	// OnWarning receives the time left before logout. Called at most once
	// per idle episode.
	OnWarning func(remaining time.Duration)
	// OnResume is called when activity moves the tab out of Warning.
	OnResume func()
	// OnLogout is called exactly once per logout.
	OnLogout func(reason LogoutReason)
}

// Validate reports configurations that would warn after logging out.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive, got %s", ErrInvalidConfig, c.IdleTimeout)
	}
	if c.Warning < 0 {
		return fmt.Errorf("%w: warning must not be negative, got %s", ErrInvalidConfig, c.Warning)
	}
	if c.Warning > 0 && c.IdleTimeout <= c.Warning {
		return fmt.Errorf("%w: idle timeout %s must exceed warning %s", ErrInvalidConfig, c.IdleTimeout, c.Warning)
	}
	return nil
}
