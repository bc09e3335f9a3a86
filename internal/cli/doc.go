// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tradedesk command line.
//
// Commands:
//
//	tradedesk                         Start the terminal UI
//	tradedesk chat                    Line-mode chat with history
//	tradedesk ask "question"          One-shot question, reply on stdout
//	tradedesk conversations list      List conversations (alias: conv)
//	tradedesk conversations show ID   Print a transcript
//	tradedesk conversations rename ID TITLE
//	tradedesk conversations delete ID
//	tradedesk conversations export ID [--format markdown|json]
//	tradedesk history SYMBOL          Closing-price history for a stock
//	tradedesk serve-dev               Run the local development API
//	tradedesk config show|path|init|get|set
//	tradedesk version
//
// Credentials are read from TRADEDESK_PASSWORD or TRADEDESK_TOKEN only.
package cli
