// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HOLDINGS PARSING
// =============================================================================

func TestParseHoldings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"array", `[{"tradingsymbol":"INFY","exchange":"NSE","quantity":10,"average_price":1400,"last_price":1500,"close_price":1490,"pnl":1000}]`, 1, false},
		{"items object", `{"items":[]}`, 0, false},
		{"holdings object", `{"holdings":[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":2,"pnl":1}]}`, 1, false},
		{"leading space", `  []`, 0, false},
		{"broken json", `{bad json`, 0, true},
		{"object without items", `{"foo":1}`, 0, true},
		{"scalar", `42`, 0, true},
		{"empty", ``, 0, true},
		{"missing symbol", `[{"quantity":1}]`, 0, true},
		{"wrong field type", `[{"tradingsymbol":"X","quantity":"ten"}]`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseHoldings([]byte(tc.body))
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed), "error should wrap ErrMalformed: %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tc.want)
			assert.Equal(t, KindHoldings, got.Kind())
		})
	}
}

// =============================================================================
// STOCKS PARSING
// =============================================================================

func TestParseStocks_Single(t *testing.T) {
	body := `{"type":"single","data":{"success":true,"symbol":"RELIANCE","name":"Reliance Industries",
		"current_price":2950.5,"previous_close":2900,"market_cap":19950000000000,"pe_ratio":null,
		"52_week_high":3100,"history_1d":[{"time":"2025-01-02T09:15:00+05:30","value":2940}]}}`

	p, err := ParseStocks([]byte(body))
	require.NoError(t, err)
	q, ok := p.(Quote)
	require.True(t, ok, "got %T", p)

	assert.Equal(t, "RELIANCE", q.Symbol)
	assert.Nil(t, q.PERatio)
	require.NotNil(t, q.High52Week)
	assert.Equal(t, 3100.0, *q.High52Week)
	assert.Len(t, q.History1D, 1)

	abs, pct, ok := q.Change()
	require.True(t, ok)
	assert.InDelta(t, 50.5, abs, 1e-9)
	assert.InDelta(t, 1.7413, pct, 1e-3)

	crores, ok := q.MarketCapCrores()
	require.True(t, ok)
	assert.InDelta(t, 1995000, crores, 1e-6)
}

func TestParseStocks_List(t *testing.T) {
	p, err := ParseStocks([]byte(`{"type":"list","title":"Bullish Stocks","data":[{"symbol":"TCS","price":3500,"signal":"Above SMA50 by 2.0%"}]}`))
	require.NoError(t, err)
	list, ok := p.(ScreenerList)
	require.True(t, ok)
	assert.Equal(t, "Bullish Stocks", list.Title)
	assert.Equal(t, []ListRow{{Symbol: "TCS", Price: 3500, Signal: "Above SMA50 by 2.0%"}}, list.Rows)
}

func TestParseStocks_Movers(t *testing.T) {
	p, err := ParseStocks([]byte(`{"type":"movers","data":{"success":true,
		"top_gainers":[{"symbol":"ITC","change_pct":3.1,"price":450}],
		"top_losers":[{"symbol":"WIPRO","change_pct":-2.4,"price":480}]}}`))
	require.NoError(t, err)
	mv, ok := p.(Movers)
	require.True(t, ok)
	assert.Equal(t, KindMovers, mv.Kind())
	assert.Equal(t, "ITC", mv.Gainers[0].Symbol)
	assert.Equal(t, -2.4, mv.Losers[0].ChangePct)
}

func TestParseStocks_Rejects(t *testing.T) {
	bodies := map[string]string{
		"bad json":        `{"type":`,
		"missing type":    `{"data":{}}`,
		"unknown type":    `{"type":"options","data":{}}`,
		"missing data":    `{"type":"single"}`,
		"null data":       `{"type":"list","data":null}`,
		"single as array": `{"type":"single","data":[]}`,
		"list as object":  `{"type":"list","data":{}}`,
		"single no sym":   `{"type":"single","data":{"name":"x"}}`,
		"movers no sym":   `{"type":"movers","data":{"top_gainers":[{"price":1}]}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStocks([]byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncodeStocks_RoundTripsThroughParse(t *testing.T) {
	in := ScreenerList{Title: "Bearish Stocks", Rows: []ListRow{{Symbol: "SBIN", Price: 700}}}
	data, err := EncodeStocks(in)
	require.NoError(t, err)

	out, err := ParseStocks(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = EncodeStocks(Holdings{})
	assert.Error(t, err)
}

// =============================================================================
// DERIVED FIGURES
// =============================================================================

func TestSummarize(t *testing.T) {
	hs := Holdings{
		{TradingSymbol: "INFY", Quantity: 10, AveragePrice: 1400, LastPrice: 1500, ClosePrice: 1490, PnL: 1000},
		{TradingSymbol: "SIM", Quantity: 2, AveragePrice: 100, LastPrice: 90, PnL: -20},
	}
	s := Summarize(hs)
	assert.Equal(t, 15180.0, s.CurrentValue)
	assert.Equal(t, 14200.0, s.Invested)
	assert.Equal(t, 980.0, s.TotalPnL)
	assert.Equal(t, 100.0, s.DayChange, "holding without close price contributes nothing")
}

func TestSeriesRange(t *testing.T) {
	_, _, ok := SeriesRange(nil)
	assert.False(t, ok)

	lo, hi, ok := SeriesRange([]SeriesPoint{{Value: 3}, {Value: 1}, {Value: 7}})
	require.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 7.0, hi)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod(" 6MO ")
	require.NoError(t, err)
	assert.Equal(t, Period6MO, p)
	assert.Equal(t, "1d", p.Interval())
	assert.True(t, Period1D.Intraday())

	_, err = ParsePeriod("max")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatPrice(1234.5))
	assert.Equal(t, "-₹12.00", FormatPrice(-12))
	assert.Equal(t, "+2.50%", FormatPct(2.5))
	assert.Equal(t, "-0.75%", FormatPct(-0.75))
	assert.Equal(t, "N/A", FormatOptionalPrice(nil))
	assert.Equal(t, "15", FormatQuantity(15))
}
