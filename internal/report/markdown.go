// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/costlens/internal/usage"
	"github.com/jeranaias/costlens/internal/util"
)

// Data is everything a report renders. All of it is recomputed from the
// durable ledger, so reports agree with reality after any restart.
type Data struct {
	GeneratedAt     time.Time
	Summary         usage.Summary
	Vendors         []usage.VendorUsage
	Trend           []usage.DailyUsage
	Recommendations []string
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown renders the full cost-optimization report.
func Markdown(d Data) string {
	var b strings.Builder

	b.WriteString("# Licensing Cost Analysis Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"))

	writeSummary(&b, d.Summary)
	writeVendors(&b, d.Vendors)
	writeTrend(&b, d.Trend)
	writeRecommendations(&b, d.Recommendations)

	return b.String()
}

func writeSummary(b *strings.Builder, s usage.Summary) {
	b.WriteString("## Cost Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Total API calls | %d |\n", s.TotalCalls)
	fmt.Fprintf(b, "| Cache hits | %d |\n", s.CacheHits)
	fmt.Fprintf(b, "| Cache misses | %d |\n", s.CacheMisses)
	fmt.Fprintf(b, "| Cache hit rate | %s |\n", Percent(s.HitRate))
	fmt.Fprintf(b, "| Tokens used | %d |\n", s.TokensUsed)
	fmt.Fprintf(b, "| Total cost | %s |\n", USD(s.TotalCostUSD))
	fmt.Fprintf(b, "| Estimated savings | %s |\n", USD(s.SavingsUSD))
	fmt.Fprintf(b, "| Net cost | %s |\n", USD(s.NetCostUSD))
	b.WriteString("\n")
}

func writeVendors(b *strings.Builder, vendors []usage.VendorUsage) {
	b.WriteString("## Vendor Breakdown\n\n")
	if len(vendors) == 0 {
		b.WriteString("No vendor activity recorded.\n\n")
		return
	}
	b.WriteString("| Vendor | API Calls | Tokens | Cost | Cache Hit Rate |\n")
	b.WriteString("|--------|-----------|--------|------|----------------|\n")
	for _, v := range vendors {
		fmt.Fprintf(b, "| %s | %d | %d | %s | %s |\n",
			v.Vendor, v.Calls, v.Tokens, USD(v.CostUSD), Percent(v.CacheHitRate))
	}
	b.WriteString("\n")
}

func writeTrend(b *strings.Builder, trend []usage.DailyUsage) {
	b.WriteString("## Cost Trend\n\n")
	if len(trend) == 0 {
		b.WriteString("No trend data available.\n\n")
		return
	}
	b.WriteString("| Date | API Calls | Cost | Cache Hit Rate |\n")
	b.WriteString("|------|-----------|------|----------------|\n")
	for _, d := range trend {
		fmt.Fprintf(b, "| %s | %d | %s | %s |\n",
			d.Date, d.Calls, USD(d.CostUSD), Percent(d.CacheHitRate))
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, recs []string) {
	b.WriteString("## Optimization Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("No optimization recommendations at this time.\n")
		return
	}
	for i, rec := range recs {
		fmt.Fprintf(b, "%d. %s\n", i+1, rec)
	}
}

// WriteFile renders the report and writes it atomically, returning the
// output path.
func WriteFile(d Data, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	name := fmt.Sprintf("cost_report_%s.md", d.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(outputDir, name)
	if err := util.AtomicWriteFile(path, []byte(Markdown(d)), 0644); err != nil {
		return "", err
	}
	return path, nil
}
