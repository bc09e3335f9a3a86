// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"regexp"
	"strings"

	"github.com/jeranaias/tradedesk/internal/market"
)

// Frame literals.
const (
	DataPrefix     = "data:"
	DoneLiteral    = "[DONE]"
	HoldingsPrefix = "[HOLDINGS]"
	StocksPrefix   = "[STOCKS]"
)

// controlTag matches a payload that is only a variant of one of the
// protocol markers, like [DONE-NOT] or [STOCKS_V2]. Other bracketed words
// are reply text.
var controlTag = regexp.MustCompile(`^\[(?:DONE|HOLDINGS|STOCKS)[-_][A-Z0-9_-]*\]$`)

// =============================================================================
// EVENTS
// =============================================================================

// Event is one classified frame. Implementations: TextDelta,
// HoldingsPayload, StocksPayload, End.
type Event interface {
	event()
}

// TextDelta is a fragment to append to the open assistant message.
type TextDelta struct {
	Text string
}

// HoldingsPayload carries the user's portfolio.
type HoldingsPayload struct {
	Items market.Holdings
}

// StocksPayload carries a single quote, a screener list or market movers.
type StocksPayload struct {
	Payload market.Payload
}

// Kind returns the stocks sub-kind.
func (p StocksPayload) Kind() market.Kind {
	return p.Payload.Kind()
}

// End terminates the stream.
type End struct{}

func (TextDelta) event()       {}
func (HoldingsPayload) event() {}
func (StocksPayload) event()   {}
func (End) event()             {}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classify turns one frame into an Event.
//
// A nil Event with a nil error means the frame carries nothing to dispatch:
// it lacks the data prefix, has an empty payload, or is a protocol marker
// variant. A malformed holdings or stocks body returns a *PayloadError;
// the caller drops that frame and carries on.
func Classify(frame string) (Event, error) {
	payload, ok := stripDataPrefix(frame)
	if !ok || payload == "" {
		return nil, nil
	}

	switch {
	case payload == DoneLiteral:
		return End{}, nil

	case strings.HasPrefix(payload, HoldingsPrefix):
		body := payload[len(HoldingsPrefix):]
		items, err := market.ParseHoldings([]byte(body))
		if err != nil {
			return nil, &PayloadError{Channel: HoldingsPrefix, Body: body, Err: err}
		}
		return HoldingsPayload{Items: items}, nil

	case strings.HasPrefix(payload, StocksPrefix):
		body := payload[len(StocksPrefix):]
		p, err := market.ParseStocks([]byte(body))
		if err != nil {
			return nil, &PayloadError{Channel: StocksPrefix, Body: body, Err: err}
		}
		return StocksPayload{Payload: p}, nil

	case controlTag.MatchString(payload):
		return nil, nil
	}

	return TextDelta{Text: payload}, nil
}

// stripDataPrefix removes the data prefix and one optional space. Only the
// first prefix is stripped; later lines of a multi-line frame stay as they
// are.
func stripDataPrefix(frame string) (string, bool) {
	frame = strings.TrimLeft(frame, "\r\n")
	if !strings.HasPrefix(frame, DataPrefix) {
		return "", false
	}
	return strings.TrimPrefix(frame[len(DataPrefix):], " "), true
}
