// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// analyze_cmd.go - Batch invoice analysis command.
//
// Command: analyze <dir>
// Short:   Analyze every invoice JSON file in a directory
// Aliases: run
//
// Examples:
//   costlens analyze ./invoices          Analyze a directory
//   costlens analyze ./invoices --json   Batch summary as JSON
//   costlens analyze ./invoices -v       Per-invoice progress lines
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jeranaias/costlens/internal/analyzer"
	"github.com/jeranaias/costlens/internal/invoice"
	"github.com/jeranaias/costlens/internal/pipeline"
)

// BatchData is the JSON payload for the analyze command.
type BatchData struct {
	Analyzed   int    `json:"analyzed"`
	CacheHits  int    `json:"cache_hits"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	ReportPath string `json:"report_path"`
}

// HandleAnalyze handles the "analyze" command.
func HandleAnalyze(args Args) error {
	if args.Dir == "" {
		return NewValidationErrorWithExample("directory", "", "an invoice directory is required", "costlens analyze ./invoices")
	}
	if info, err := os.Stat(args.Dir); err != nil || !info.IsDir() {
		return NewNotFoundError("invoice directory", args.Dir)
	}

	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Analyzer()
	if err != nil {
		return err
	}

	// Ctrl-C stops the batch; completed work is already committed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := pipeline.NewRunner(a, app.Controller, app.Config.Report.OutputDir)
	if args.Verbose && !args.JSON {
		runner.OnResult = func(inv invoice.Invoice, analysis *analyzer.Analysis, err error) {
			switch {
			case err != nil:
				fmt.Printf("%s %s: %v\n", ErrorStyle.Render("[FAIL]"), inv.Vendor, err)
			case analysis.CacheHit:
				fmt.Printf("%s %s (cached, %s)\n", SuccessStyle.Render("[HIT] "), inv.Vendor, analysis.Entry.Fingerprint.Short())
			default:
				fmt.Printf("%s %s (%d tokens, $%.4f)\n", SuccessStyle.Render("[DONE]"), inv.Vendor,
					analysis.Entry.TokensUsed, analysis.Entry.CostUSD)
			}
		}
	}
	res, err := runner.RunDir(ctx, args.Dir)
	if err != nil {
		return NewCommandError("analyze", "run", "batch failed", err)
	}

	data := BatchData{
		Analyzed:   res.Analyzed,
		CacheHits:  res.CacheHits,
		Failed:     res.Failed,
		Skipped:    res.Skipped,
		ReportPath: res.ReportPath,
	}

	if args.JSON {
		return NewJSONResponse("analyze", data).Print()
	}

	fmt.Println(TitleStyle.Render("Invoice Analysis"))
	fmt.Printf("%s %d\n", LabelStyle.Render("Analyzed:"), data.Analyzed)
	fmt.Printf("%s %d\n", LabelStyle.Render("Cache hits:"), data.CacheHits)
	if data.Failed > 0 {
		fmt.Printf("%s %s\n", LabelStyle.Render("Failed:"), WarningStyle.Render(fmt.Sprintf("%d", data.Failed)))
	}
	if data.Skipped > 0 {
		fmt.Printf("%s %d\n", LabelStyle.Render("Skipped:"), data.Skipped)
	}
	fmt.Printf("%s %s\n", LabelStyle.Render("Report:"), ValueStyle.Render(data.ReportPath))
	return nil
}
