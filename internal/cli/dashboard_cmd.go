// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// dashboard_cmd.go - Interactive spend dashboard command.
//
// Command: dashboard
// Short:   Full-screen view of spend, vendors, and trends
// Aliases: dash
package cli

import (
	"github.com/jeranaias/costlens/internal/ui/dashboard"
)

// HandleDashboard handles the "dashboard" command.
func HandleDashboard(args Args) error {
	if !IsStdoutTTY() {
		return NewCommandError("dashboard", "start", "stdout is not a terminal", nil)
	}

	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := dashboard.Run(app.Controller); err != nil {
		return NewCommandError("dashboard", "run", "dashboard exited with error", err)
	}
	return nil
}
