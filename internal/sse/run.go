// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler receives dispatched events. Calls arrive in stream order from the
// goroutine running Run.
type Handler interface {
	HandleText(text string)
	HandlePayload(p market.Payload)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Text    func(text string)
	Payload func(p market.Payload)
}

func (h HandlerFuncs) HandleText(text string) {
	if h.Text != nil {
		h.Text(text)
	}
}

func (h HandlerFuncs) HandlePayload(p market.Payload) {
	if h.Payload != nil {
		h.Payload(p)
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

type runConfig struct {
	logger *zap.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger used for dropped and ignored frames.
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Stats summarises one stream.
type Stats struct {
	Frames    int
	Deltas    int
	Payloads  int
	Malformed int
	Ignored   int

	// Ended is true when the stream was closed by an End event rather than
	// by the body running out.
	Ended bool

	// TailBytes is the size of the incomplete frame discarded at EOF.
	TailBytes int
}

// =============================================================================
// RUN
// =============================================================================

// Run reads body to completion, dispatching each classified frame to h.
//
// It returns when an End frame arrives, the body is exhausted, or reading
// fails. The context is checked before every dispatch; once it is done no
// further event reaches h and Run returns ctx.Err(). Read failures are
// wrapped in *TransportError. Malformed payload frames are logged and
// counted but never returned.
func Run(ctx context.Context, body io.Reader, h Handler, opts ...Option) (Stats, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var stats Stats
	if body == nil {
		return stats, &TransportError{Err: ErrNoBody}
	}

	reader := NewTextReader(body)
	var splitter Splitter

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunk, readErr := reader.Next()

		for _, frame := range splitter.Push(chunk) {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Frames++

			ev, err := Classify(frame)
			if err != nil {
				stats.Malformed++
				var perr *PayloadError
				if errors.As(err, &perr) {
					cfg.logger.Warn("Dropping malformed payload frame",
						zap.String("channel", perr.Channel),
						zap.String("body", perr.Excerpt()),
						zap.Error(perr.Err))
				}
				continue
			}

			switch e := ev.(type) {
			case nil:
				stats.Ignored++
				cfg.logger.Debug("Ignoring frame", zap.Int("bytes", len(frame)))
			case End:
				stats.Ended = true
				return stats, nil
			case TextDelta:
				stats.Deltas++
				h.HandleText(e.Text)
			case HoldingsPayload:
				stats.Payloads++
				h.HandlePayload(e.Items)
			case StocksPayload:
				stats.Payloads++
				h.HandlePayload(e.Payload)
			}
		}

		if readErr == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if errors.Is(readErr, io.EOF) {
			stats.TailBytes = len(splitter.Pending())
			if stats.TailBytes > 0 {
				cfg.logger.Debug("Discarding incomplete trailing frame", zap.Int("bytes", stats.TailBytes))
			}
			return stats, nil
		}
		return stats, &TransportError{Err: readErr}
	}
}
