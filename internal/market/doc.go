// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package market defines the structured market-data records that arrive
// inline in a chat stream and the price series fetched for the side panel.
//
// Payloads are validated at the parse boundary: ParseHoldings and
// ParseStocks either return a well-formed typed record or an error, never a
// half-filled map. Callers decide what a rejected payload means; the chat
// stream drops it and keeps going.
//
// # Key Types
//
//   - Payload: sealed interface over Holdings, Quote, ScreenerList and Movers
//   - Kind: holdings, single, list or movers
//   - Period: chart window (1d, 5d, 1mo, 6mo, 1y, 5y)
//   - Summary: portfolio totals derived from holdings
//
// # Usage
//
//	p, err := market.ParseStocks([]byte(`{"type":"movers","data":{...}}`))
//	if err != nil {
//	    return err
//	}
//	if mv, ok := p.(market.Movers); ok {
//	    fmt.Println(len(mv.Gainers))
//	}
package market
