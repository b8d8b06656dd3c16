// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"github.com/charmbracelet/glamour"
)

// RenderTerminal renders the markdown report for terminal display. On
// renderer failure the plain markdown is returned so a broken style
// never hides the report.
func RenderTerminal(markdown string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// Preview builds and renders a report in one step.
func Preview(d Data, width int) string {
	return RenderTerminal(Markdown(d), width)
}
