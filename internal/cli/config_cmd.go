// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration CLI commands for costlens.
//
// Command: config [subcommand]
// Short:   Show or initialize configuration
//
// Subcommands:
//   show (default)      Show the effective configuration
//   init                Write a default config file
//
// Examples:
//   costlens config                  Show effective config
//   costlens config show --json      Config as JSON
//   costlens config init             Write ~/.costlens/config.toml
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/costlens/internal/config"
)

// HandleConfig handles the "config" command with its subcommands.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return showConfig(args)
	case "init":
		return initConfig(args)
	default:
		return NewValidationError("config subcommand", args.Subcommand, "must be show or init")
	}
}

// showConfig displays the effective configuration after env overrides.
func showConfig(args Args) error {
	path := args.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config show", cfg).Print()
	}

	fmt.Println(TitleStyle.Render("Configuration"))
	fmt.Printf("%s %s\n", LabelStyle.Render("Config file:"), ValueStyle.Render(path))
	fmt.Printf("%s %s\n", LabelStyle.Render("Data dir:"), ValueStyle.Render(cfg.DataDir))
	fmt.Println(SectionStyle.Render("Cache"))
	fmt.Printf("%s %d hours\n", LabelStyle.Render("TTL:"), cfg.Cache.TTLHours)
	fmt.Printf("%s %d\n", LabelStyle.Render("Max entries:"), cfg.Cache.MaxEntries)
	fmt.Println(SectionStyle.Render("Budget"))
	fmt.Printf("%s $%.2f\n", LabelStyle.Render("Daily limit:"), cfg.Budget.DailyCostLimitUSD)
	fmt.Printf("%s %d/min\n", LabelStyle.Render("Request rate:"), cfg.Budget.RequestsPerMinute)
	fmt.Printf("%s %d\n", LabelStyle.Render("Max concurrent:"), cfg.Budget.MaxConcurrent)
	fmt.Printf("%s $%.2f\n", LabelStyle.Render("Est. cost/call:"), cfg.Budget.EstimatedCostPerCall)
	fmt.Println(SectionStyle.Render("API"))
	fmt.Printf("%s %s\n", LabelStyle.Render("Base URL:"), ValueStyle.Render(cfg.API.BaseURL))
	fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(cfg.API.Model))
	fmt.Println(SectionStyle.Render("Report"))
	fmt.Printf("%s %s\n", LabelStyle.Render("Output dir:"), ValueStyle.Render(cfg.Report.OutputDir))
	return nil
}

// initConfig writes a default config file, refusing to overwrite.
func initConfig(args Args) error {
	path := args.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return NewCommandError("config", "init", fmt.Sprintf("config already exists at %s", path), nil)
	}

	cfg := config.Default()
	if err := cfg.Save(path); err != nil {
		return NewCommandError("config", "init", "config write failed", err)
	}

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print()
	}
	fmt.Printf("%s default config written to %s\n", SuccessStyle.Render("OK"), path)
	return nil
}
