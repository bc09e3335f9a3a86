// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

// =============================================================================
// KIND
// =============================================================================

// Kind identifies a payload variant. The stocks channel carries its own
// sub-kind; holdings have a channel of their own.
type Kind string

const (
	KindHoldings Kind = "holdings"
	KindSingle   Kind = "single"
	KindList     Kind = "list"
	KindMovers   Kind = "movers"
)

// Payload is one structured market record. The set of implementations is
// closed: Holdings, Quote, ScreenerList and Movers.
type Payload interface {
	Kind() Kind
	payload()
}

// =============================================================================
// HOLDINGS
// =============================================================================

// Holding is one position in the user's portfolio.
type Holding struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange,omitempty"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	ClosePrice    float64 `json:"close_price,omitempty"`
	PnL           float64 `json:"pnl"`
}

// Value returns the position's current market value.
func (h Holding) Value() float64 {
	return h.LastPrice * h.Quantity
}

// Invested returns the position's cost basis.
func (h Holding) Invested() float64 {
	return h.AveragePrice * h.Quantity
}

// DayChange returns today's change in value, or 0 when no close is known.
func (h Holding) DayChange() float64 {
	if h.ClosePrice == 0 {
		return 0
	}
	return (h.LastPrice - h.ClosePrice) * h.Quantity
}

// DayChangePct returns today's price change in percent, or 0 when no close
// is known.
func (h Holding) DayChangePct() float64 {
	return pctChange(h.LastPrice, h.ClosePrice)
}

// Holdings is the payload of the holdings channel.
type Holdings []Holding

func (Holdings) Kind() Kind { return KindHoldings }
func (Holdings) payload()   {}

// =============================================================================
// SINGLE QUOTE
// =============================================================================

// SeriesPoint is one sample of a closing-price series. Time is kept as the
// ISO string the API sends.
type SeriesPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Quote is the "single" stocks payload: a snapshot of one instrument.
// Optional figures are nil when the data source had no value.
type Quote struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name,omitempty"`
	CurrentPrice  *float64      `json:"current_price,omitempty"`
	PreviousClose *float64      `json:"previous_close,omitempty"`
	Open          *float64      `json:"open,omitempty"`
	DayHigh       *float64      `json:"day_high,omitempty"`
	DayLow        *float64      `json:"day_low,omitempty"`
	MarketCap     *float64      `json:"market_cap,omitempty"`
	PERatio       *float64      `json:"pe_ratio,omitempty"`
	DividendYield *float64      `json:"dividend_yield,omitempty"`
	High52Week    *float64      `json:"52_week_high,omitempty"`
	Low52Week     *float64      `json:"52_week_low,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	History1D     []SeriesPoint `json:"history_1d,omitempty"`
}

func (Quote) Kind() Kind { return KindSingle }
func (Quote) payload()   {}

// Change returns the absolute and percent change against the previous
// close. ok is false when either price is missing.
func (q Quote) Change() (abs, pct float64, ok bool) {
	if q.CurrentPrice == nil || q.PreviousClose == nil {
		return 0, 0, false
	}
	return *q.CurrentPrice - *q.PreviousClose, pctChange(*q.CurrentPrice, *q.PreviousClose), true
}

// MarketCapCrores returns market capitalisation in crores (1e7).
func (q Quote) MarketCapCrores() (float64, bool) {
	if q.MarketCap == nil || *q.MarketCap == 0 {
		return 0, false
	}
	return *q.MarketCap / 1e7, true
}

// =============================================================================
// SCREENER LIST
// =============================================================================

// ListRow is one row of a screener result.
type ListRow struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Signal string  `json:"signal,omitempty"`
}

// ScreenerList is the "list" stocks payload.
type ScreenerList struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"data"`
}

func (ScreenerList) Kind() Kind { return KindList }
func (ScreenerList) payload()   {}

// =============================================================================
// MOVERS
// =============================================================================

// Mover is one gainer or loser.
type Mover struct {
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
	Price     float64 `json:"price"`
}

// Movers is the "movers" stocks payload.
type Movers struct {
	Gainers []Mover `json:"top_gainers"`
	Losers  []Mover `json:"top_losers"`
}

func (Movers) Kind() Kind { return KindMovers }
func (Movers) payload()   {}

func pctChange(now, before float64) float64 {
	if before == 0 {
		return 0
	}
	return (now - before) / before * 100
}
