// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every parse failure in this package.
var ErrMalformed = errors.New("malformed market payload")

// ShapeError reports a payload that decoded as JSON but does not have the
// shape its kind requires.
type ShapeError struct {
	Kind   Kind
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s payload: %s", e.Kind, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformed.
func (e *ShapeError) Unwrap() error {
	return ErrMalformed
}

// ParseHoldings decodes the holdings channel. The body is either a JSON
// array of holdings or an object wrapping one under "items" or "holdings".
func ParseHoldings(data []byte) (Holdings, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &ShapeError{Kind: KindHoldings, Reason: "empty body"}
	}

	var items Holdings
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: holdings: %v", ErrMalformed, err)
		}
	case '{':
		var wrapped struct {
			Items    *Holdings `json:"items"`
			Holdings *Holdings `json:"holdings"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: holdings: %v", ErrMalformed, err)
		}
		switch {
		case wrapped.Items != nil:
			items = *wrapped.Items
		case wrapped.Holdings != nil:
			items = *wrapped.Holdings
		default:
			return nil, &ShapeError{Kind: KindHoldings, Reason: `object has no "items" array`}
		}
	default:
		return nil, &ShapeError{Kind: KindHoldings, Reason: "expected array or object"}
	}

	if items == nil {
		items = Holdings{}
	}
	for i, h := range items {
		if h.TradingSymbol == "" {
			return nil, &ShapeError{Kind: KindHoldings, Reason: fmt.Sprintf("item %d has no tradingsymbol", i)}
		}
	}
	return items, nil
}

// stocksEnvelope is the wire form of the stocks channel.
type stocksEnvelope struct {
	Type  Kind            `json:"type"`
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data"`
}

// ParseStocks decodes the stocks channel: an object whose "type" selects
// the variant and whose "data" holds the kind-specific body.
func ParseStocks(data []byte) (Payload, error) {
	var env stocksEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(data), &env); err != nil {
		return nil, fmt.Errorf("%w: stocks: %v", ErrMalformed, err)
	}
	body := bytes.TrimSpace(env.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, &ShapeError{Kind: env.Type, Reason: "missing data"}
	}

	switch env.Type {
	case KindSingle:
		return parseQuote(body)
	case KindList:
		return parseList(env.Title, body)
	case KindMovers:
		return parseMovers(body)
	case "":
		return nil, &ShapeError{Kind: "stocks", Reason: "missing type"}
	default:
		return nil, &ShapeError{Kind: env.Type, Reason: "unknown stocks type"}
	}
}

func parseQuote(body []byte) (Payload, error) {
	if body[0] != '{' {
		return nil, &ShapeError{Kind: KindSingle, Reason: "data must be an object"}
	}
	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("%w: single: %v", ErrMalformed, err)
	}
	if q.Symbol == "" {
		return nil, &ShapeError{Kind: KindSingle, Reason: "no symbol"}
	}
	return q, nil
}

func parseList(title string, body []byte) (Payload, error) {
	if body[0] != '[' {
		return nil, &ShapeError{Kind: KindList, Reason: "data must be an array"}
	}
	var rows []ListRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrMalformed, err)
	}
	for i, r := range rows {
		if r.Symbol == "" {
			return nil, &ShapeError{Kind: KindList, Reason: fmt.Sprintf("row %d has no symbol", i)}
		}
	}
	if rows == nil {
		rows = []ListRow{}
	}
	return ScreenerList{Title: title, Rows: rows}, nil
}

func parseMovers(body []byte) (Payload, error) {
	if body[0] != '{' {
		return nil, &ShapeError{Kind: KindMovers, Reason: "data must be an object"}
	}
	var mv Movers
	if err := json.Unmarshal(body, &mv); err != nil {
		return nil, fmt.Errorf("%w: movers: %v", ErrMalformed, err)
	}
	for _, m := range append(append([]Mover(nil), mv.Gainers...), mv.Losers...) {
		if m.Symbol == "" {
			return nil, &ShapeError{Kind: KindMovers, Reason: "mover has no symbol"}
		}
	}
	return mv, nil
}

// EncodeStocks renders p in the stocks channel wire form. Holdings are not
// a stocks kind and are rejected.
func EncodeStocks(p Payload) ([]byte, error) {
	env := struct {
		Type  Kind   `json:"type"`
		Title string `json:"title,omitempty"`
		Data  any    `json:"data"`
	}{Type: p.Kind(), Data: p}

	switch v := p.(type) {
	case ScreenerList:
		env.Title = v.Title
		env.Data = v.Rows
	case Quote, Movers:
	default:
		return nil, fmt.Errorf("cannot encode %s as a stocks payload", p.Kind())
	}
	return json.Marshal(env)
}
