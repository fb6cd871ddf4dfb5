// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the idlesync command line.
//
// The default command opens an interactive tab. The other commands act on
// the shared state directory without a terminal UI, so scripts and other
// processes can inspect the idle clock, record activity, or log out every
// open tab.
//
// # Usage
//
//	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
//
// # Commands
//
//   - tab [PATH]: interactive tab guarded by the idle timer
//   - status: shared timestamp, session and remaining time
//   - touch: publish activity as if a tab saw input
//   - login USER, signout: manage the session record
//   - logout: log out every tab
//   - config show|init|path|get: configuration file
//   - simulate: several tabs on a fake clock, printed as a timeline
//
// Every command accepts --json and writes a JSONResponse envelope.
package cli
