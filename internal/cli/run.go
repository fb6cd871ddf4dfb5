// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run.go - Command dispatch.
package cli

import (
	"io"
)

// Run executes argv (without the program name) and returns the exit code.
// Errors go to stderr, or to stdout as a JSON response with --json.
func Run(argv []string, stdout, stderr io.Writer) int {
	cmd, args := Parse(argv)
	if err := dispatch(cmd, args, stdout); err != nil {
		w := stderr
		if args.JSON {
			w = stdout
		}
		DisplayError(w, args.Name, err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func dispatch(cmd Command, args Args, stdout io.Writer) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(stdout)
		return nil
	case CmdVersion:
		PrintVersion(stdout)
		return nil
	case CmdConfig:
		return runConfig(args, stdout)
	case CmdSimulate:
		return runSimulate(args, stdout)
	case CmdUnknown:
		return NewValidationError("command", args.Name, "run 'idlesync help' for usage")
	}

	env, err := newEnv(args, cmd == CmdTab)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			env.Log.Warn("ENV_CLOSE_FAILED", "error", cerr)
		}
	}()

	switch cmd {
	case CmdTab:
		return runTab(env)
	case CmdStatus:
		return runStatus(env, stdout)
	case CmdTouch:
		return runTouch(env, stdout)
	case CmdLogin:
		return runLogin(env, stdout)
	case CmdLogout:
		return runLogout(env, stdout)
	case CmdSignout:
		return runSignout(env, stdout)
	default:
		return NewValidationError("command", args.Name, "run 'idlesync help' for usage")
	}
}
