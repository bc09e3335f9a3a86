// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse de-multiplexes the assistant's server-sent-event stream.
//
// A reply stream interleaves plain text deltas with inline market payloads.
// The pipeline has three stages, each usable on its own:
//
//  1. TextReader decodes the response body incrementally, carrying partial
//     UTF-8 sequences across reads.
//  2. Splitter cuts decoded text into frames on blank lines, holding back a
//     trailing partial frame until its delimiter arrives.
//  3. Classify turns one frame into an Event: TextDelta, HoldingsPayload,
//     StocksPayload or End.
//
// Run drives all three against a Handler until the body is exhausted, an
// End event arrives, or the context is cancelled.
//
// # Wire Format
//
//	data: Hello \n\n
//	data: [HOLDINGS] [{"tradingsymbol":"INFY",...}]\n\n
//	data: [STOCKS] {"type":"single","data":{...}}\n\n
//	data: [DONE]\n\n
//
// A malformed payload frame is logged and dropped; the stream continues.
//
// # Usage
//
//	stats, err := sse.Run(ctx, resp.Body, sse.HandlerFuncs{
//	    Text:    func(s string) { store.ApplyTextDelta(id, s) },
//	    Payload: panel.SetPayload,
//	}, sse.WithLogger(logger))
package sse
