// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Unified confirmation handling for destructive commands.
//
// Single pattern for every destructive action:
//  1. If --confirm flag is present, proceed without prompting
//  2. If --json mode, require --confirm flag (no interactive prompts)
//  3. If stdin is not a TTY, require --confirm flag (can't prompt)
//  4. Otherwise, show interactive prompt for confirmation
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RequireConfirmation checks that the user has confirmed a destructive
// action. Returns false with a nil error when the user answers no.
func RequireConfirmation(confirmFlag bool, action string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}

	if jsonMode {
		return false, fmt.Errorf("confirmation required: use --confirm flag for destructive actions in JSON mode")
	}

	// USABILITY: TTY detection for proper terminal handling
	if !IsTTY() {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --confirm flag")
	}

	fmt.Printf("Are you sure you want to %s? [y/N]: ", action)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
