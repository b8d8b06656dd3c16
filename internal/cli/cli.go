// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for costlens.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"fmt"
	"os"
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
	CmdAnalyze Command = iota
	CmdWatch
	CmdReport
	CmdDashboard
	CmdCache
	CmdUsage
	CmdConfig
	CmdKey
	CmdDoctor
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Quiet      bool
	Verbose    bool
	JSON       bool // Output in JSON format
	Confirm    bool // Skip interactive confirmation for destructive actions

	// Command-specific
	Dir        string // Invoice input directory for analyze/watch
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string

	// Options holds command-specific named options (e.g., --days, --output)
	Options map[string]string
}

const usageText = `costlens - cached invoice analysis with hard cost controls

Costlens runs vendor invoices through a hosted analysis model exactly
once per distinct invoice. Results are cached on disk, every paid call
is written to a durable usage ledger, and a budget controller refuses
calls that would break the daily spend limit.

Usage:
  costlens analyze <dir>       Analyze every invoice JSON in a directory
  costlens watch <dir>         Watch a directory and analyze new invoices
  costlens report              Generate a cost report from the ledger
  costlens dashboard           Interactive spend dashboard
  costlens cache [subcommand]  Cache management
  costlens usage [subcommand]  Usage ledger queries
  costlens config [show|init]  Configuration
  costlens key [set|status|delete]  API credential management
  costlens doctor              System diagnostics

Cache Commands:
  costlens cache stats             Show entry count, size, hit rate
  costlens cache evict             Evict expired entries
  costlens cache clear --confirm   Remove every cached result
  costlens cache export --output entries.json

Usage Commands:
  costlens usage summary           Cumulative spend and savings
  costlens usage vendors           Per-vendor cost breakdown
  costlens usage trends            Daily spend, most recent first
    --days N                       Window size (default: 30)
  costlens usage recommendations   Cost optimization suggestions
  costlens usage export            Export ledger records as JSON
    --output FILE                  Destination file (required)
  costlens usage prune             Delete records older than a cutoff
    --older-than DUR               Age cutoff, e.g. 720h (required)
    --confirm                      Skip interactive confirmation

Config Commands:
  costlens config show             Show effective configuration
  costlens config init             Write a default config file

Key Commands:
  costlens key set                 Store the analysis API key (prompted)
  costlens key status              Show whether a credential is configured
  costlens key delete --confirm    Remove the stored credential

Global Flags:
  --config PATH   Config file (default: ~/.costlens/config.toml)
  --json          Machine-readable JSON output
  --confirm       Skip confirmation prompts for destructive actions
  -q, --quiet     Minimal output
  -v, --verbose   Debug output

Environment:
  COSTLENS_API_KEY              Analysis API key (overrides the keystore)
  COSTLENS_DATA_DIR             Data directory override
  COSTLENS_DAILY_COST_LIMIT_USD Daily budget override

Examples:
  costlens analyze ./invoices            Analyze a directory of invoices
  costlens analyze ./invoices --json     Batch summary as JSON
  costlens watch ./invoices              Continuous analysis
  costlens report                        Write and preview a cost report
  costlens usage trends --days 7         Last week of spend
  costlens cache clear --confirm         Start from an empty cache
  costlens doctor                        Check config, storage, credential

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("costlens version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs classifies an argument list. Split from Parse for tests.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "analyze", "run":
		parseDirArg(&parsedArgs, remaining)
		return CmdAnalyze, parsedArgs

	case "watch":
		parseDirArg(&parsedArgs, remaining)
		return CmdWatch, parsedArgs

	case "report":
		parseOptions(&parsedArgs, remaining)
		return CmdReport, parsedArgs

	case "dashboard", "dash":
		return CmdDashboard, parsedArgs

	case "cache":
		parseSubcommand(&parsedArgs, remaining)
		parseOptions(&parsedArgs, remaining)
		return CmdCache, parsedArgs

	case "usage", "spend":
		parseSubcommand(&parsedArgs, remaining)
		parseOptions(&parsedArgs, remaining)
		return CmdUsage, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "key", "credential":
		parseSubcommand(&parsedArgs, remaining)
		return CmdKey, parsedArgs

	case "doctor":
		return CmdDoctor, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command: show help rather than guessing.
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{
		Options: make(map[string]string),
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--confirm":
			parsedArgs.Confirm = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseDirArg captures the first positional argument as the input directory.
func parseDirArg(args *Args, remaining []string) {
	for _, arg := range remaining {
		if !strings.HasPrefix(arg, "-") {
			args.Dir = arg
			return
		}
	}
}

// parseSubcommand captures the first positional argument as the subcommand.
func parseSubcommand(args *Args, remaining []string) {
	for _, arg := range remaining {
		if !strings.HasPrefix(arg, "-") {
			args.Subcommand = arg
			return
		}
	}
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	positional := make([]string, 0, len(remaining))
	for _, arg := range remaining {
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
		}
	}
	if len(positional) > 0 {
		args.Subcommand = positional[0]
	}
	if len(positional) > 1 {
		args.ConfigKey = positional[1]
	}
	if len(positional) > 2 {
		args.ConfigVal = positional[2]
	}
}

// parseOptions collects --name value and --name=value pairs into Options.
func parseOptions(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		body := strings.TrimPrefix(arg, "--")
		if name, val, ok := strings.Cut(body, "="); ok {
			args.Options[name] = val
			continue
		}
		if i+1 < len(remaining) && !strings.HasPrefix(remaining[i+1], "-") {
			args.Options[body] = remaining[i+1]
			i++
		} else {
			args.Options[body] = "true"
		}
	}
}

// =============================================================================
// SMALL HANDLERS
// =============================================================================

// VersionData is the JSON payload for the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		resp := NewJSONResponse("version", data)
		resp.Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}
