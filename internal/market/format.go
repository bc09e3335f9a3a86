// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// printer formats figures with Indian digit grouping (12,34,567.89).
var printer = message.NewPrinter(language.MustParse("en-IN"))

// FormatAmount renders v with two decimals and locale grouping.
func FormatAmount(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatPrice renders v as a rupee amount.
func FormatPrice(v float64) string {
	if v < 0 {
		return "-₹" + FormatAmount(-v)
	}
	return "₹" + FormatAmount(v)
}

// FormatOptionalPrice renders a nullable price, "N/A" when missing.
func FormatOptionalPrice(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return FormatPrice(*v)
}

// FormatSigned renders v with an explicit sign.
func FormatSigned(v float64) string {
	if v >= 0 {
		return "+" + FormatAmount(v)
	}
	return "-" + FormatAmount(-v)
}

// FormatPct renders a percentage with an explicit sign.
func FormatPct(v float64) string {
	return FormatSigned(v) + "%"
}

// FormatQuantity renders share counts without decimals when whole.
func FormatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return printer.Sprint(number.Decimal(q, number.MaxFractionDigits(0)))
	}
	return printer.Sprint(number.Decimal(q, number.MaxFractionDigits(4)))
}
