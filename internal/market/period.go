// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"fmt"
	"strings"
)

// Period is a chart window understood by the history endpoint.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1MO Period = "1mo"
	Period6MO Period = "6mo"
	Period1Y  Period = "1y"
	Period5Y  Period = "5y"
)

// DefaultPeriod seeds the chart window of a fresh single-quote payload.
const DefaultPeriod = Period1D

// Periods lists the selectable windows in display order.
var Periods = []Period{Period1D, Period5D, Period1MO, Period6MO, Period1Y, Period5Y}

// ParsePeriod validates a period name against Periods.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q (want one of %s)", s, JoinPeriods(Periods))
}

// Interval returns the sampling interval the history endpoint uses for p.
func (p Period) Interval() string {
	switch p {
	case Period1D:
		return "5m"
	case Period5D:
		return "15m"
	case Period1MO:
		return "1h"
	default:
		return "1d"
	}
}

// Intraday reports whether series points for p should be labelled with a
// time of day rather than a date.
func (p Period) Intraday() bool {
	return p == Period1D || p == Period5D
}

// JoinPeriods renders periods as "1d, 5d, ...".
func JoinPeriods(ps []Period) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
