// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// USD formats a dollar amount with grouping and two decimals.
func USD(v float64) string {
	return printer.Sprintf("$%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Percent formats a ratio (0..1) as a percentage with one decimal.
func Percent(v float64) string {
	return printer.Sprintf("%v", number.Percent(v, number.MaxFractionDigits(1)))
}
