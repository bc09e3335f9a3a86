// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver is a local stand-in for the trading-assistant API.
//
// It speaks the same wire contract as the production server: bearer
// tokens from /auth/login/, the conversation REST endpoints, the
// text/event-stream reply stream with its [HOLDINGS] and [STOCKS] frames,
// and the price-history endpoint. Replies come from a YAML script instead
// of a model, and price series are synthetic but deterministic per symbol
// and period, so the client can be developed and tested offline.
//
// # Reply scripts
//
//	replies:
//	  - match: [holdings, portfolio]
//	    text: Here is your portfolio.
//	    holdings:
//	      - {tradingsymbol: TCS, quantity: 10, average_price: 3500, last_price: 4100, pnl: 6000}
//	default:
//	  text: "You said: {input}"
//
// Rules match case-insensitively on any keyword; the first match wins.
// "{input}" in text is replaced by the user's message. A rule may instead
// list raw frames to send verbatim, which is how protocol edge cases are
// exercised.
package devserver
