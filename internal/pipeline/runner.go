// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jeranaias/costlens/internal/analyzer"
	"github.com/jeranaias/costlens/internal/invoice"
	"github.com/jeranaias/costlens/internal/report"
	"github.com/jeranaias/costlens/internal/usage"
)

// Runner drives a batch of invoices through the cached analyzer.
type Runner struct {
	analyzer   *analyzer.Analyzer
	controller *usage.Controller
	outputDir  string

	// OnResult, when set, observes every per-invoice outcome as the
	// batch progresses. Called before the outcome is tallied.
	OnResult func(inv invoice.Invoice, analysis *analyzer.Analysis, err error)
}

// NewRunner builds a Runner. The controller is the same instance the
// analyzer uses, so reports reflect the run just performed.
func NewRunner(a *analyzer.Analyzer, controller *usage.Controller, outputDir string) *Runner {
	return &Runner{analyzer: a, controller: controller, outputDir: outputDir}
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Analyzed   int
	CacheHits  int
	Failed     int
	Skipped    int
	ReportPath string
}

// RunDir analyzes every invoice in dir and writes a report. Budget
// denials stop the remaining batch (the budget will not reset mid-run);
// per-invoice compute failures are logged and skipped so one bad
// invoice never sinks the batch. Work already analyzed is committed and
// billed regardless of where the batch stops, so an interrupted batch
// resumes from cache.
func (r *Runner) RunDir(ctx context.Context, dir string) (*BatchResult, error) {
	invoices, loadErrs, err := invoice.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for name, lerr := range loadErrs {
		log.Printf("pipeline: skipping %s: %v", name, lerr)
	}

	res := &BatchResult{Skipped: len(loadErrs)}
	for _, inv := range invoices {
		if ctx.Err() != nil {
			break
		}
		analysis, err := r.analyzer.Analyze(ctx, inv)
		if r.OnResult != nil {
			r.OnResult(inv, analysis, err)
		}
		switch {
		case err == nil:
			res.Analyzed++
			if analysis.CacheHit {
				res.CacheHits++
			}
		case errors.Is(err, usage.ErrBudgetExceeded):
			log.Printf("pipeline: budget exhausted, stopping batch: %v", err)
			return r.finish(res)
		default:
			log.Printf("pipeline: analysis failed for %s: %v", inv.Vendor, err)
			res.Failed++
		}
	}
	return r.finish(res)
}

// finish writes the report for whatever the batch accomplished.
func (r *Runner) finish(res *BatchResult) (*BatchResult, error) {
	data, err := r.reportData()
	if err != nil {
		return res, err
	}
	path, err := report.WriteFile(data, r.outputDir)
	if err != nil {
		return res, fmt.Errorf("failed to write report: %w", err)
	}
	res.ReportPath = path
	return res, nil
}

// reportData assembles the report view from the durable ledger.
func (r *Runner) reportData() (report.Data, error) {
	ledger := r.controller.Ledger()
	vendors, err := ledger.VendorBreakdown()
	if err != nil {
		return report.Data{}, err
	}
	trend, err := ledger.Trends(30)
	if err != nil {
		return report.Data{}, err
	}
	return report.Data{
		GeneratedAt:     time.Now(),
		Summary:         r.controller.Summary(),
		Vendors:         vendors,
		Trend:           trend,
		Recommendations: r.controller.Recommendations(),
	}, nil
}
