// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements command-line parsing and command handlers for
// costlens.
//
// Commands follow one pattern: Parse classifies os.Args into a Command
// plus Args, main dispatches to a Handle* function, and every handler
// returns an error instead of exiting so the caller controls display
// and exit codes. Output honors NO_COLOR, FORCE_COLOR, and TTY
// detection, and every read-only command supports --json for scripting.
package cli
