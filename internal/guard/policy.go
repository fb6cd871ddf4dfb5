// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"fmt"
	"time"

	"github.com/jeranaias/idlesync/internal/idle"
	"github.com/jeranaias/idlesync/internal/routes"
)

// Timeouts are the idle durations for one kind of session. Warning is the
// idle time at which the warning appears; zero means no warning.
type Timeouts struct {
	Idle    time.Duration
	Warning time.Duration
}

// Policy holds the product decisions the guard applies.
type Policy struct {
	Normal Timeouts
	Admin  Timeouts

	LoginPath      string
	AdminLoginPath string

	// RedirectDelay lets sign-out side effects settle before navigating.
	RedirectDelay time.Duration
	// SignOutTimeout bounds the session termination call.
	SignOutTimeout time.Duration
	// ThrottleWindow coalesces raw input into at most one reset per window.
	ThrottleWindow time.Duration
}

// DefaultPolicy returns the stock timeouts: a 30 minute session with a
// warning at 28 minutes, and a 15 minute admin session without warning.
func DefaultPolicy() Policy {
	return Policy{
		Normal:         Timeouts{Idle: 30 * time.Minute, Warning: 28 * time.Minute},
		Admin:          Timeouts{Idle: 15 * time.Minute},
		LoginPath:      "/login",
		AdminLoginPath: "/admin/login",
		RedirectDelay:  500 * time.Millisecond,
		SignOutTimeout: 5 * time.Second,
		ThrottleWindow: idle.DefaultThrottleWindow,
	}
}

// Validate checks both timeout pairs.
func (p Policy) Validate() error {
	for name, t := range map[string]Timeouts{"normal": p.Normal, "admin": p.Admin} {
		cfg := idle.Config{IdleTimeout: t.Idle, Warning: t.Warning, Enabled: true}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s timeouts: %w", name, err)
		}
	}
	if p.LoginPath == "" || p.AdminLoginPath == "" {
		return fmt.Errorf("%w: login paths must be set", idle.ErrInvalidConfig)
	}
	return nil
}

// Settings is the monitoring configuration for one navigation.
type Settings struct {
	Enabled     bool
	Mode        idle.Mode
	Admin       bool
	IdleTimeout time.Duration
	Warning     time.Duration
}

// ComputeSettings applies p to a classified route. Monitoring runs for
// authenticated users outside the auth pages, and on admin pages other
// than the admin login. Admin sessions never show a warning.
func ComputeSettings(class routes.Class, authenticated bool, p Policy) Settings {
	admin := class.Admin && !class.AdminLogin
	s := Settings{
		Enabled: (authenticated && !class.AuthPage) || admin,
		Mode:    idle.ModeFull,
		Admin:   admin,
	}
	if admin {
		s.IdleTimeout = p.Admin.Idle
	} else {
		s.IdleTimeout = p.Normal.Idle
		s.Warning = p.Normal.Warning
	}
	return s
}
