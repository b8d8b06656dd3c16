// costlens - cached invoice analysis with hard cost controls.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/costlens/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdAnalyze:
		err = cli.HandleAnalyze(args)
	case cli.CmdWatch:
		err = cli.HandleWatch(args)
	case cli.CmdReport:
		err = cli.HandleReport(args)
	case cli.CmdDashboard:
		err = cli.HandleDashboard(args)
	case cli.CmdCache:
		err = cli.HandleCache(args)
	case cli.CmdUsage:
		err = cli.HandleUsage(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdKey:
		err = cli.HandleKey(args)
	case cli.CmdDoctor:
		err = cli.HandleDoctor(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	}

	if err != nil {
		cli.DisplayError(err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}
