// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// key_cmd.go - API credential management commands for costlens.
//
// Command: key [subcommand]
// Short:   Manage the stored analysis API credential
// Aliases: credential
//
// Subcommands:
//   set                 Store the API key (prompted, never echoed)
//   status (default)    Show whether a credential is configured
//   delete              Remove the stored credential
//
// The COSTLENS_API_KEY environment variable always overrides the
// keystore, so CI never needs a stored credential.
//
// SECURITY: Credentials are encrypted at rest and never logged
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/costlens/internal/keystore"
)

// HandleKey handles the "key" command with its subcommands.
func HandleKey(args Args) error {
	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	ks := keystore.New(app.Config.KeystoreDir())

	switch args.Subcommand {
	case "set":
		return setKey(ks, args)
	case "", "status":
		return keyStatus(ks, args)
	case "delete":
		return deleteKey(ks, args)
	default:
		return NewValidationError("key subcommand", args.Subcommand, "must be set, status, or delete")
	}
}

// setKey reads the credential and stores it encrypted.
func setKey(ks *keystore.Keystore, args Args) error {
	var key string

	if IsTTY() {
		fmt.Print("Analysis API key (input hidden): ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return NewCommandError("key", "set", "failed to read key", err)
		}
		key = string(raw)
	} else {
		// Piped input, e.g. `echo "$KEY" | costlens key set`.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return NewCommandError("key", "set", "failed to read key from stdin", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return NewValidationError("api key", "", "must not be empty")
	}

	if err := ks.Store(key); err != nil {
		return NewCommandError("key", "set", "credential store failed", err)
	}

	if args.JSON {
		return NewJSONResponse("key set", map[string]bool{"stored": true}).Print()
	}
	fmt.Printf("%s credential stored\n", SuccessStyle.Render("OK"))
	return nil
}

// keyStatus reports where the effective credential comes from.
func keyStatus(ks *keystore.Keystore, args Args) error {
	source := ""
	switch {
	case os.Getenv(keystore.EnvAPIKey) != "":
		source = "environment"
	case ks.Exists():
		source = "keystore"
	}

	if args.JSON {
		return NewJSONResponse("key status", map[string]interface{}{
			"configured": source != "",
			"source":     source,
		}).Print()
	}

	fmt.Println(TitleStyle.Render("Credential Status"))
	switch source {
	case "environment":
		fmt.Printf("%s set via %s\n", SuccessStyle.Render("Configured:"), keystore.EnvAPIKey)
	case "keystore":
		fmt.Printf("%s stored in encrypted keystore\n", SuccessStyle.Render("Configured:"))
	default:
		fmt.Println(WarningStyle.Render("No credential configured."))
		fmt.Println(DimStyle.Render("Run 'costlens key set' or export " + keystore.EnvAPIKey + "."))
	}
	return nil
}

// deleteKey removes the stored credential after confirmation.
func deleteKey(ks *keystore.Keystore, args Args) error {
	confirmed, err := RequireConfirmation(args.Confirm, "delete the stored API credential", args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := ks.Delete(); err != nil {
		return NewCommandError("key", "delete", "credential delete failed", err)
	}

	if args.JSON {
		return NewJSONResponse("key delete", map[string]bool{"deleted": true}).Print()
	}
	fmt.Printf("%s credential deleted\n", SuccessStyle.Render("OK"))
	return nil
}
