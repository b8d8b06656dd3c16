// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// usage_cmd.go - Usage ledger CLI commands for costlens.
//
// Command: usage [subcommand]
// Short:   Query the durable usage ledger
// Aliases: spend
//
// Subcommands:
//   summary (default)   Cumulative spend, savings, hit rate
//   vendors             Per-vendor cost breakdown
//   trends              Daily spend, most recent first
//   recommendations     Cost optimization suggestions
//   export              Export ledger records as JSON
//   prune               Delete records older than a cutoff
//
// Examples:
//   costlens usage                      Summary (default)
//   costlens usage vendors --json       Vendor breakdown for scripting
//   costlens usage trends --days 7      Last week of spend
//   costlens usage export --output ledger.json
//   costlens usage prune --older-than 2160h --confirm
package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/costlens/internal/report"
)

// HandleUsage handles the "usage" command with its subcommands.
func HandleUsage(args Args) error {
	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch args.Subcommand {
	case "", "summary":
		return showUsageSummary(app, args)
	case "vendors":
		return showUsageVendors(app, args)
	case "trends":
		return showUsageTrends(app, args)
	case "recommendations", "recs":
		return showUsageRecommendations(app, args)
	case "export":
		return exportUsage(app, args)
	case "prune":
		return pruneUsage(app, args)
	default:
		return NewValidationError("usage subcommand", args.Subcommand,
			"must be summary, vendors, trends, recommendations, export, or prune")
	}
}

// showUsageSummary displays the cumulative ledger view.
func showUsageSummary(app *App, args Args) error {
	summary := app.Controller.Summary()

	if args.JSON {
		return NewJSONResponse("usage summary", summary).Print()
	}

	fmt.Println(TitleStyle.Render("Usage Summary"))
	fmt.Printf("%s %d\n", LabelStyle.Render("API calls:"), summary.TotalCalls)
	fmt.Printf("%s %d\n", LabelStyle.Render("Cache hits:"), summary.CacheHits)
	fmt.Printf("%s %s\n", LabelStyle.Render("Hit rate:"), ValueStyle.Render(report.Percent(summary.HitRate)))
	fmt.Printf("%s %d\n", LabelStyle.Render("Tokens used:"), summary.TokensUsed)
	fmt.Printf("%s %s\n", LabelStyle.Render("Total spend:"), ValueStyle.Render(report.USD(summary.TotalCostUSD)))
	fmt.Printf("%s %s\n", LabelStyle.Render("Est. savings:"), SuccessStyle.Render(report.USD(summary.SavingsUSD)))
	fmt.Printf("%s %s\n", LabelStyle.Render("Net cost:"), ValueStyle.Render(report.USD(summary.NetCostUSD)))
	if summary.MissFailures > 0 {
		fmt.Printf("%s %s\n", LabelStyle.Render("Failed calls:"), WarningStyle.Render(fmt.Sprintf("%d", summary.MissFailures)))
	}
	return nil
}

// showUsageVendors displays the per-vendor breakdown, most expensive first.
func showUsageVendors(app *App, args Args) error {
	vendors, err := app.Ledger.VendorBreakdown()
	if err != nil {
		return NewCommandError("usage", "vendors", "breakdown query failed", err)
	}

	if args.JSON {
		return NewJSONResponse("usage vendors", vendors).Print()
	}

	fmt.Println(TitleStyle.Render("Spend by Vendor"))
	if len(vendors) == 0 {
		fmt.Println(DimStyle.Render("No vendor activity recorded yet."))
		return nil
	}
	for _, v := range vendors {
		fmt.Printf("%s %s  (%d calls, %d tokens, %s hit rate)\n",
			LabelStyle.Render(v.Vendor+":"),
			ValueStyle.Render(report.USD(v.CostUSD)),
			v.Calls, v.Tokens, report.Percent(v.CacheHitRate))
	}
	return nil
}

// showUsageTrends displays the daily spend window.
func showUsageTrends(app *App, args Args) error {
	days := 30
	if v, ok := args.Options["days"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("days", v, "must be a positive integer")
		}
		days = n
	}

	trend, err := app.Ledger.Trends(days)
	if err != nil {
		return NewCommandError("usage", "trends", "trend query failed", err)
	}

	if args.JSON {
		return NewJSONResponse("usage trends", trend).Print()
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Daily Spend (last %d days)", days)))
	if len(trend) == 0 {
		fmt.Println(DimStyle.Render("No activity in this window."))
		return nil
	}
	for _, day := range trend {
		fmt.Printf("%s %s  (%d calls, %s hit rate)\n",
			LabelStyle.Render(day.Date+":"),
			ValueStyle.Render(report.USD(day.CostUSD)),
			day.Calls, report.Percent(day.CacheHitRate))
	}
	return nil
}

// showUsageRecommendations displays cost optimization suggestions.
func showUsageRecommendations(app *App, args Args) error {
	recs := app.Controller.Recommendations()

	if args.JSON {
		return NewJSONResponse("usage recommendations", recs).Print()
	}

	fmt.Println(TitleStyle.Render("Cost Optimization Recommendations"))
	if len(recs) == 0 {
		fmt.Println(SuccessStyle.Render("No recommendations. Spending looks healthy."))
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("  %s %s\n", WarningStyle.Render("*"), rec)
	}
	return nil
}

// exportUsage writes the full ledger as a JSON file.
func exportUsage(app *App, args Args) error {
	output, ok := args.Options["output"]
	if !ok || output == "" || output == "true" {
		return NewValidationErrorWithExample("output", output, "an output file is required",
			"costlens usage export --output ledger.json")
	}

	count, err := app.Ledger.Export(output)
	if err != nil {
		return NewCommandError("usage", "export", "ledger export failed", err)
	}

	if args.JSON {
		return NewJSONResponse("usage export", map[string]interface{}{
			"path":    output,
			"records": count,
		}).Print()
	}
	fmt.Printf("%s %d records exported to %s\n", SuccessStyle.Render("OK"), count, output)
	return nil
}

// pruneUsage deletes records older than the cutoff. Summaries shrink
// accordingly; the ledger never edits records in place, it only drops
// whole rows past the retention window.
func pruneUsage(app *App, args Args) error {
	raw, ok := args.Options["older-than"]
	if !ok || raw == "" || raw == "true" {
		return NewValidationErrorWithExample("older-than", raw, "an age cutoff is required",
			"costlens usage prune --older-than 720h")
	}
	cutoff, err := time.ParseDuration(raw)
	if err != nil || cutoff <= 0 {
		return NewValidationError("older-than", raw, "must be a positive Go duration such as 720h")
	}

	confirmed, err := RequireConfirmation(args.Confirm,
		fmt.Sprintf("delete usage records older than %s", cutoff), args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	pruned, err := app.Ledger.Prune(cutoff)
	if err != nil {
		return NewCommandError("usage", "prune", "prune failed", err)
	}

	if args.JSON {
		return NewJSONResponse("usage prune", map[string]int64{"pruned": pruned}).Print()
	}
	fmt.Printf("%s %d records pruned\n", SuccessStyle.Render("OK"), pruned)
	return nil
}
