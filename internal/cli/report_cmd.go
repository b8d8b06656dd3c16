// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// report_cmd.go - Cost report generation command.
//
// Command: report
// Short:   Generate a Markdown cost report from the usage ledger
//
// Flags:
//   --days N     Trend window in days (default: 30)
//   --no-preview Skip the terminal preview
//
// Examples:
//   costlens report               Write a report and preview it
//   costlens report --days 7      One week trend window
//   costlens report --json        Report metadata as JSON
package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/costlens/internal/report"
)

// ReportData is the JSON payload for the report command.
type ReportData struct {
	Path         string  `json:"path"`
	TotalCalls   int     `json:"total_api_calls"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	SavingsUSD   float64 `json:"cost_savings_usd"`
}

// HandleReport handles the "report" command.
func HandleReport(args Args) error {
	days := 30
	if v, ok := args.Options["days"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("days", v, "must be a positive integer")
		}
		days = n
	}

	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	vendors, err := app.Ledger.VendorBreakdown()
	if err != nil {
		return NewCommandError("report", "aggregate", "vendor breakdown failed", err)
	}
	trend, err := app.Ledger.Trends(days)
	if err != nil {
		return NewCommandError("report", "aggregate", "trend query failed", err)
	}

	data := report.Data{
		GeneratedAt:     time.Now(),
		Summary:         app.Controller.Summary(),
		Vendors:         vendors,
		Trend:           trend,
		Recommendations: app.Controller.Recommendations(),
	}

	path, err := report.WriteFile(data, app.Config.Report.OutputDir)
	if err != nil {
		return NewCommandError("report", "write", "report write failed", err)
	}

	if args.JSON {
		return NewJSONResponse("report", ReportData{
			Path:         path,
			TotalCalls:   data.Summary.TotalCalls,
			TotalCostUSD: data.Summary.TotalCostUSD,
			SavingsUSD:   data.Summary.SavingsUSD,
		}).Print()
	}

	if _, skip := args.Options["no-preview"]; !skip && !args.Quiet {
		fmt.Println(report.Preview(data, GetTerminalWidth()))
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("Report written:"), ValueStyle.Render(path))
	return nil
}
