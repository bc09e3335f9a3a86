// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

// Summary aggregates a holdings payload into portfolio totals.
type Summary struct {
	CurrentValue float64
	Invested     float64
	TotalPnL     float64
	DayChange    float64
}

// Summarize totals hs. P&L is the broker-reported figure, not recomputed.
func Summarize(hs Holdings) Summary {
	var s Summary
	for _, h := range hs {
		s.CurrentValue += h.Value()
		s.Invested += h.Invested()
		s.TotalPnL += h.PnL
		s.DayChange += h.DayChange()
	}
	return s
}

// SeriesRange returns the min and max values of a series.
func SeriesRange(points []SeriesPoint) (lo, hi float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	lo, hi = points[0].Value, points[0].Value
	for _, p := range points[1:] {
		if p.Value < lo {
			lo = p.Value
		}
		if p.Value > hi {
			hi = p.Value
		}
	}
	return lo, hi, true
}
