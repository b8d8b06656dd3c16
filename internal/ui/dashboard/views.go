// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/costlens/internal/report"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	costStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	savingsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// =============================================================================
// RENDERING
// =============================================================================

// View renders the dashboard based on the current view mode.
func (m Model) View() string {
	if !m.loaded {
		return fmt.Sprintf("\n  %s Reading usage ledger...\n", m.spinner.View())
	}

	var b strings.Builder
	switch m.view {
	case ViewVendors:
		b.WriteString(m.renderVendors())
	case ViewTrends:
		b.WriteString(m.renderTrends())
	default:
		b.WriteString(m.renderSummary())
	}

	if m.data.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("ledger read failed: %v", m.data.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("[1] summary  [2] vendors  [3] trends  [r] refresh  [q] quit"))
	return b.String()
}

// renderSummary shows cumulative cost and cache effectiveness.
func (m Model) renderSummary() string {
	s := m.data.summary
	var b strings.Builder

	b.WriteString(titleStyle.Render("Analysis Spend - Summary"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Cost"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Total spend:  "), costStyle.Render(report.USD(s.TotalCostUSD))))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Est. savings: "), savingsStyle.Render(report.USD(s.SavingsUSD))))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Net cost:     "), valueStyle.Render(report.USD(s.NetCostUSD))))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Cache"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("API calls:    "), valueStyle.Render(fmt.Sprintf("%d", s.TotalCalls))))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Cache hits:   "), valueStyle.Render(fmt.Sprintf("%d", s.CacheHits))))
	b.WriteString(fmt.Sprintf("  %s %s %s\n",
		labelStyle.Render("Hit rate:     "),
		renderBar(int(s.HitRate*20), 20, "2"),
		valueStyle.Render(report.Percent(s.HitRate))))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Tokens used:  "), valueStyle.Render(fmt.Sprintf("%d", s.TokensUsed))))

	if len(m.data.recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Recommendations"))
		b.WriteString("\n")
		for _, rec := range m.data.recommendations {
			b.WriteString(warnStyle.Render("  * " + rec))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderVendors shows the per-vendor breakdown, most expensive first.
func (m Model) renderVendors() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Analysis Spend - By Vendor"))
	b.WriteString("\n\n")

	if len(m.data.vendors) == 0 {
		b.WriteString("No vendor activity recorded yet\n")
		return b.String()
	}

	maxCost := 0.0
	for _, v := range m.data.vendors {
		if v.CostUSD > maxCost {
			maxCost = v.CostUSD
		}
	}

	for _, v := range m.data.vendors {
		barWidth := 0
		if maxCost > 0 {
			barWidth = int((v.CostUSD / maxCost) * 25)
		}
		name := runewidth.Truncate(v.Vendor, 20, "...")
		b.WriteString(fmt.Sprintf("  %-20s %s %s (%d calls, %s hit rate)\n",
			name,
			renderBar(barWidth, 25, "10"),
			report.USD(v.CostUSD),
			v.Calls,
			report.Percent(v.CacheHitRate)))
	}

	return b.String()
}

// renderTrends shows the recent daily spend chart.
func (m Model) renderTrends() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Analysis Spend - Last %d Days", trendDays)))
	b.WriteString("\n\n")

	if len(m.data.trend) == 0 {
		b.WriteString("No historical data available\n")
		return b.String()
	}

	maxCost := 0.0
	for _, day := range m.data.trend {
		if day.CostUSD > maxCost {
			maxCost = day.CostUSD
		}
	}

	for _, day := range m.data.trend {
		barWidth := 0
		if maxCost > 0 {
			barWidth = int((day.CostUSD / maxCost) * 30)
		}
		b.WriteString(fmt.Sprintf("  %-12s %s %s (%d calls)\n",
			day.Date,
			renderBar(barWidth, 30, "12"),
			report.USD(day.CostUSD),
			day.Calls))
	}

	return b.String()
}

// =============================================================================
// HELPERS
// =============================================================================

// renderBar renders a horizontal bar chart.
func renderBar(value, maxWidth int, color string) string {
	if value < 0 {
		value = 0
	}
	if value > maxWidth {
		value = maxWidth
	}

	filled := strings.Repeat("#", value)
	empty := strings.Repeat("-", maxWidth-value)

	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	return barStyle.Render(filled) + emptyStyle.Render(empty)
}
