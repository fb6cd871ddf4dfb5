// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and dispatch for idlesync.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTab Command = iota
	CmdStatus
	CmdTouch
	CmdLogout
	CmdLogin
	CmdSignout
	CmdConfig
	CmdSimulate
	CmdVersion
	CmdHelp
	CmdUnknown
)

func (c Command) String() string {
	switch c {
	case CmdTab:
		return "tab"
	case CmdStatus:
		return "status"
	case CmdTouch:
		return "touch"
	case CmdLogout:
		return "logout"
	case CmdLogin:
		return "login"
	case CmdSignout:
		return "signout"
	case CmdConfig:
		return "config"
	case CmdSimulate:
		return "simulate"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	StateDir   string
	JSON       bool
	Verbose    bool
	Quiet      bool

	// Name is the command word as typed.
	Name string
	// Subcommand is the first positional argument after the command.
	Subcommand string

	// Raw holds the arguments after the command word, flags included.
	Raw []string
}

const usageText = `idlesync - idle logout shared across tabs

Every tab that points at the same state directory shares one idle clock.
Activity in any tab keeps all of them signed in; a logout in any tab
logs out all of them.

Usage:
  idlesync [tab] [PATH]          Open an interactive tab (default)
  idlesync status [--json]       Show the shared idle state
  idlesync touch                 Record activity for every tab
  idlesync logout                Log out every tab
  idlesync login USER            Start a session
  idlesync signout               End the session without notifying tabs
  idlesync config [show|init|path|get KEY]
                                 Show or create the configuration
  idlesync simulate [flags]      Run tabs against a fake clock and print
                                 the timeline
  idlesync version               Show version information
  idlesync help                  Show this help

Simulate flags:
  --tabs N                       Number of tabs (default: 3)
  --idle DURATION                Idle timeout (default: 200ms)
  --warning DURATION             Warning time, 0 for none (default: 100ms)
  --activity LIST                Comma-separated activity times for tab 2,
                                 e.g. 50ms,150ms
  --logout-at DURATION           Tab 1 clicks "log out now" at this time
  --path PATH                    Route every tab opens (default: /dashboard)
  --until DURATION               How long to run (default: idle + 200ms)

Global Flags:
  --config PATH                  Config file (default: ~/.idlesync/config.toml)
  --state-dir DIR                Shared state directory
  --json                         Output in JSON format
  -v, --verbose                  Debug logging
  -q, --quiet                    Minimal output

Environment:
  IDLESYNC_HOME                  Config directory (default: ~/.idlesync)
  IDLESYNC_STATE_DIR, IDLESYNC_STORE, IDLESYNC_TRANSPORT, IDLESYNC_LOG_LEVEL
                                 Override the matching config keys

Examples:
  idlesync login alice           Sign in, then open tabs in two terminals:
  idlesync tab /dashboard
  idlesync tab /admin/users
  idlesync status --json         Inspect the shared state
  idlesync simulate --tabs 2 --activity 150ms

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "idlesync version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses argv (without the program name) into a command and args.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		args.Name = "tab"
		return CmdTab, args
	}

	args.Name = strings.ToLower(remaining[0])
	args.Raw = remaining[1:]
	if p := NewArgParser(args.Raw); p.Subcommand() != "" {
		args.Subcommand = p.Subcommand()
	}

	switch args.Name {
	case "tab", "open":
		return CmdTab, args
	case "status", "s":
		return CmdStatus, args
	case "touch":
		return CmdTouch, args
	case "logout":
		return CmdLogout, args
	case "login":
		return CmdLogin, args
	case "signout", "sign-out":
		return CmdSignout, args
	case "config":
		return CmdConfig, args
	case "simulate", "sim":
		return CmdSimulate, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		if strings.HasPrefix(args.Name, "/") {
			// A bare route opens a tab on it.
			args.Subcommand = remaining[0]
			args.Raw = remaining
			args.Name = "tab"
			return CmdTab, args
		}
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "--config" || arg == "--state-dir":
			if i+1 < len(argv) {
				i++
				setPathFlag(&args, arg, argv[i])
			}
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--state-dir="):
			name, value, _ := strings.Cut(arg, "=")
			setPathFlag(&args, name, value)
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

func setPathFlag(args *Args, name, value string) {
	if name == "--config" {
		args.ConfigPath = value
	} else {
		args.StateDir = value
	}
}
