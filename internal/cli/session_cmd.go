// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - status, touch, login, logout and signout.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/idlesync/internal/activitysync"
	"github.com/jeranaias/idlesync/internal/clock"
	"github.com/jeranaias/idlesync/internal/session"
)

// =============================================================================
// STATUS
// =============================================================================

// StatusReport is the data written by "idlesync status".
type StatusReport struct {
	SignedIn       bool   `json:"signed_in"`
	User           string `json:"user,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SessionStarted string `json:"session_started,omitempty"`

	// State is signed_out, active, warning, expired or unknown.
	State          string `json:"state"`
	LastActivityMs int64  `json:"last_activity_ms"`
	IdleMs         int64  `json:"idle_ms"`
	RemainingMs    int64  `json:"remaining_ms"`
	IdleTimeout    string `json:"idle_timeout"`
	Warning        string `json:"warning"`

	StateDir  string `json:"state_dir"`
	Store     string `json:"store"`
	Transport string `json:"transport"`
	Peers     int    `json:"peers"`
}

const (
	stateSignedOut = "signed_out"
	stateActive    = "active"
	stateWarning   = "warning"
	stateExpired   = "expired"
	stateUnknown   = "unknown"
)

// buildStatus reads the shared state without joining the bus.
func buildStatus(env *Env) (StatusReport, error) {
	store, err := env.Store()
	if err != nil {
		return StatusReport{}, err
	}
	sessions, err := env.Sessions()
	if err != nil {
		return StatusReport{}, err
	}

	cfg := env.Config
	report := StatusReport{
		State:       stateSignedOut,
		IdleTimeout: cfg.Timeouts.Idle.String(),
		Warning:     cfg.Timeouts.Warning.String(),
		StateDir:    env.StateDir,
		Store:       cfg.Sync.Store,
		Transport:   cfg.Sync.Transport,
	}

	st, err := sessions.GetStatus()
	if err != nil {
		return report, err
	}
	if st.Authenticated {
		report.SignedIn = true
		report.User = st.User
		report.SessionID = st.SessionID
		report.SessionStarted = st.StartTime.UTC().Format(time.RFC3339)
		report.State = stateUnknown
	}

	ts, err := activitysync.ReadLastActivity(store)
	if err != nil {
		env.Log.Warn("STATUS_TIMESTAMP_INVALID", "error", err)
	}
	report.LastActivityMs = ts
	if ts > 0 && report.SignedIn {
		idle := env.Clock.Now().Sub(clock.FromEpochMillis(ts))
		if idle < 0 {
			idle = 0
		}
		remaining := cfg.Timeouts.Idle.Duration - idle
		if remaining < 0 {
			remaining = 0
		}
		report.IdleMs = idle.Milliseconds()
		report.RemainingMs = remaining.Milliseconds()
		switch {
		case remaining == 0:
			report.State = stateExpired
		case cfg.Timeouts.Warning.Duration > 0 && idle >= cfg.Timeouts.Warning.Duration:
			report.State = stateWarning
		default:
			report.State = stateActive
		}
	}

	peers, err := activitysync.ListPeers(activitysync.BusDir(env.StateDir))
	if err != nil {
		env.Log.Debug("STATUS_PEERS_UNAVAILABLE", "error", err)
	}
	report.Peers = len(peers)
	return report, nil
}

func runStatus(env *Env, stdout io.Writer) error {
	return OutputJSON(stdout, env.Args.JSON, "status", func() (any, error) {
		report, err := buildStatus(env)
		if err != nil {
			return nil, err
		}
		if !env.Args.JSON {
			printStatus(stdout, report, env.Args.Quiet)
		}
		return report, nil
	})
}

func printStatus(w io.Writer, r StatusReport, quiet bool) {
	if quiet {
		fmt.Fprintln(w, r.State)
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("idlesync status"))
	fmt.Fprintln(w, RenderSeparator(40))
	if r.SignedIn {
		fmt.Fprintln(w, RenderField("User", r.User))
		fmt.Fprintln(w, RenderField("Signed in at", r.SessionStarted))
	} else {
		fmt.Fprintln(w, RenderField("User", DimStyle.Render("not signed in")))
	}
	fmt.Fprintln(w, RenderField("State", renderState(r.State)))
	if r.LastActivityMs > 0 {
		fmt.Fprintln(w, RenderField("Last activity", clock.FromEpochMillis(r.LastActivityMs).Format(time.RFC3339)))
	}
	if r.SignedIn && r.LastActivityMs > 0 {
		fmt.Fprintln(w, RenderField("Idle for", session.FormatDuration(time.Duration(r.IdleMs)*time.Millisecond)))
		fmt.Fprintln(w, RenderField("Logout in", session.FormatDuration(time.Duration(r.RemainingMs)*time.Millisecond)))
	}
	fmt.Fprintln(w, RenderField("Policy", fmt.Sprintf("idle %s, warning %s", r.IdleTimeout, r.Warning)))
	fmt.Fprintln(w, RenderField("State dir", r.StateDir))
	fmt.Fprintln(w, RenderField("Store", r.Store))
	fmt.Fprintln(w, RenderField("Transport", r.Transport))
	fmt.Fprintln(w, RenderField("Open tabs", fmt.Sprintf("%d", r.Peers)))
}

func renderState(state string) string {
	switch state {
	case stateActive:
		return SuccessStyle.Render("[OK] " + state)
	case stateWarning:
		return WarningStyle.Render("[!] " + state)
	case stateExpired:
		return ErrorStyle.Render("[X] " + state)
	default:
		return DimStyle.Render(state)
	}
}

// =============================================================================
// TOUCH
// =============================================================================

// runTouch records activity as if a tab saw a user event.
func runTouch(env *Env, stdout io.Writer) error {
	s, err := env.Sync("")
	if err != nil {
		return err
	}
	s.PublishActivity()
	ts := s.LastActivityTimestamp()
	return OutputJSON(stdout, env.Args.JSON, "touch", func() (any, error) {
		if !env.Args.JSON && !env.Args.Quiet {
			fmt.Fprintf(stdout, "%s activity recorded via %s\n", SuccessStyle.Render("[OK]"), s.TransportName())
		}
		return map[string]any{"last_activity_ms": ts, "transport": s.TransportName()}, nil
	})
}

// =============================================================================
// LOGIN / LOGOUT / SIGNOUT
// =============================================================================

func runLogin(env *Env, stdout io.Writer) error {
	p := NewArgParser(env.Args.Raw)
	user := strings.TrimSpace(strings.Join(positionals(p), " "))
	if user == "" {
		return ErrMissingArgument("USER", "idlesync login alice")
	}
	sessions, err := env.Sessions()
	if err != nil {
		return err
	}
	rec, err := sessions.Login(user)
	if err != nil {
		return NewCommandError("login", "start session", err)
	}
	// Signing in counts as activity; tabs opened now start a full window.
	s, err := env.Sync("")
	if err != nil {
		return err
	}
	s.PublishActivity()

	return OutputJSON(stdout, env.Args.JSON, "login", func() (any, error) {
		if !env.Args.JSON && !env.Args.Quiet {
			fmt.Fprintf(stdout, "%s signed in as %s\n", SuccessStyle.Render("[OK]"), rec.User)
		}
		return rec, nil
	})
}

// runLogout logs out every tab: the bus message first so that open tabs
// redirect, then the session and the shared timestamp.
func runLogout(env *Env, stdout io.Writer) error {
	s, err := env.Sync("")
	if err != nil {
		return err
	}
	sessions, err := env.Sessions()
	if err != nil {
		return err
	}

	s.PublishLogout()
	ctx, cancel := context.WithTimeout(context.Background(), env.Config.Guard.SignOutTimeout.Duration)
	defer cancel()
	termErr := sessions.TerminateSession(ctx)
	if termErr != nil {
		env.Log.Error("LOGOUT_SIGNOUT_FAILED", "error", termErr)
	}
	s.ClearLastActivityTimestamp()

	if termErr != nil {
		return NewCommandError("logout", "end session", termErr)
	}
	return OutputJSON(stdout, env.Args.JSON, "logout", func() (any, error) {
		if !env.Args.JSON && !env.Args.Quiet {
			fmt.Fprintf(stdout, "%s logged out every tab\n", SuccessStyle.Render("[OK]"))
		}
		return map[string]any{"transport": s.TransportName()}, nil
	})
}

// runSignout ends the session without a bus message. Open tabs notice on
// their next navigation.
func runSignout(env *Env, stdout io.Writer) error {
	sessions, err := env.Sessions()
	if err != nil {
		return err
	}
	if !sessions.Authenticated() {
		return errNotSignedIn
	}
	ctx, cancel := context.WithTimeout(context.Background(), env.Config.Guard.SignOutTimeout.Duration)
	defer cancel()
	if err := sessions.TerminateSession(ctx); err != nil {
		return NewCommandError("signout", "end session", err)
	}
	return OutputJSON(stdout, env.Args.JSON, "signout", func() (any, error) {
		if !env.Args.JSON && !env.Args.Quiet {
			fmt.Fprintf(stdout, "%s signed out\n", SuccessStyle.Render("[OK]"))
		}
		return map[string]any{"signed_in": false}, nil
	})
}

func positionals(p *ArgParser) []string {
	out := make([]string, 0, p.PositionalCount())
	for i := 0; i < p.PositionalCount(); i++ {
		out = append(out, p.Positional(i))
	}
	return out
}
