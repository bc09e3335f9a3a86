// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jeranaias/tradedesk/internal/market"
)

// ist is the exchange's time zone. Series times carry its offset the way
// the production history endpoint does.
var ist = time.FixedZone("IST", 5*3600+30*60)

// Trading session, local time.
const (
	sessionOpen  = 9*time.Hour + 15*time.Minute
	sessionClose = 15*time.Hour + 30*time.Minute
)

// seriesShape is how many trading days a period spans and its sampling step.
type seriesShape struct {
	days int
	step time.Duration // zero means one point per day
}

var shapes = map[market.Period]seriesShape{
	market.Period1D:  {days: 1, step: 5 * time.Minute},
	market.Period5D:  {days: 5, step: 15 * time.Minute},
	market.Period1MO: {days: 22, step: time.Hour},
	market.Period6MO: {days: 126},
	market.Period1Y:  {days: 250},
	market.Period5Y:  {days: 1250},
}

// Series returns a synthetic closing-price series for symbol over period,
// ending on the last trading day at or before end. The same inputs always
// give the same points.
func Series(symbol string, period market.Period, end time.Time) []market.SeriesPoint {
	shape, ok := shapes[period]
	if !ok {
		return []market.SeriesPoint{}
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	h := fnv.New64a()
	h.Write([]byte(symbol))
	base := h.Sum64()
	h.Write([]byte("|" + string(period)))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	price := 100 + float64(base%4900)
	days := tradingDays(end.In(ist), shape.days)

	points := make([]market.SeriesPoint, 0, len(days)*8)
	emit := func(t time.Time) {
		// Random walk with a slight upward drift, 0.1% to 1.5% per step.
		vol := 0.001 + 0.014*float64(seed%7)/6
		if shape.step != 0 {
			vol /= 4
		}
		price *= 1 + rng.NormFloat64()*vol + vol/20
		price = math.Max(price, 1)
		points = append(points, market.SeriesPoint{
			Time:  t.Format(time.RFC3339),
			Value: math.Round(price*100) / 100,
		})
	}

	for _, day := range days {
		if shape.step == 0 {
			emit(day.Add(sessionClose))
			continue
		}
		for off := sessionOpen; off <= sessionClose; off += shape.step {
			emit(day.Add(off))
		}
	}
	return points
}

// tradingDays returns the last n weekdays at or before end, oldest first,
// each at local midnight.
func tradingDays(end time.Time, n int) []time.Time {
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, ist)
	days := make([]time.Time, n)
	for i := n - 1; i >= 0; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days[i] = day
			i--
		}
		day = day.AddDate(0, 0, -1)
	}
	return days
}
