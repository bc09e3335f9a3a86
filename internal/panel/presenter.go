// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/notify"
)

// Errors returned by LoadSeries.
var (
	// ErrNoQuote means the panel is not showing a single quote.
	ErrNoQuote = errors.New("panel is not showing a single quote")
	// ErrSuperseded means a newer payload or load replaced this one before
	// its result arrived. The result was discarded.
	ErrSuperseded = errors.New("series load superseded")
)

// Mode is what the panel currently shows.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeHoldings Mode = Mode(market.KindHoldings)
	ModeSingle   Mode = Mode(market.KindSingle)
	ModeList     Mode = Mode(market.KindList)
	ModeMovers   Mode = Mode(market.KindMovers)
)

// State is a snapshot of the panel.
type State struct {
	Mode    Mode
	Data    market.Payload
	Visible bool

	// Chart window, single quotes only.
	Symbol  string
	Series  []market.SeriesPoint
	Period  market.Period
	Loading bool
	// Pending is the period being fetched while Loading.
	Pending market.Period
}

// SeriesLoader fetches a closing-price series.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error)
}

// SeriesLoaderFunc adapts a function to SeriesLoader.
type SeriesLoaderFunc func(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error)

// LoadSeries calls f.
func (f SeriesLoaderFunc) LoadSeries(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error) {
	return f(ctx, symbol, period)
}

// Presenter owns the panel state. Safe for concurrent use.
type Presenter struct {
	mu    sync.Mutex
	state State

	// payloadGen changes with every SetPayload/Reset; loadSeq with every
	// LoadSeries. A load result applies only if both still match.
	payloadGen uint64
	loadSeq    uint64

	loader   SeriesLoader
	notifier notify.Notifier
	logger   *zap.Logger
	onChange func(State)
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithNotifier sets where fetch failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Presenter) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the presenter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Presenter) {
		if l != nil {
			p.logger = l
		}
	}
}

// OnChange registers a callback invoked with the new state after every
// change. It runs outside the presenter's lock.
func OnChange(fn func(State)) Option {
	return func(p *Presenter) { p.onChange = fn }
}

// NewPresenter creates an empty, hidden panel. loader may be nil if the
// chart window is never refreshed.
func NewPresenter(loader SeriesLoader, opts ...Option) *Presenter {
	p := &Presenter{
		state:    State{Mode: ModeNone},
		loader:   loader,
		notifier: notify.Discard,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// PAYLOAD
// =============================================================================

// SetPayload replaces the whole panel state with pl and shows the panel.
// A single quote seeds the chart window from its intraday series.
func (p *Presenter) SetPayload(pl market.Payload) {
	if pl == nil {
		return
	}
	p.mu.Lock()
	p.payloadGen++
	next := State{
		Mode:    Mode(pl.Kind()),
		Data:    pl,
		Visible: true,
	}
	if q, ok := pl.(market.Quote); ok {
		next.Symbol = q.Symbol
		next.Series = append([]market.SeriesPoint(nil), q.History1D...)
		next.Period = market.DefaultPeriod
	}
	p.state = next
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Debug("Panel payload set", zap.String("mode", string(snap.Mode)))
	p.changed(snap)
}

// Dismiss hides the panel and keeps its data.
func (p *Presenter) Dismiss() {
	p.setVisible(false)
}

// Show re-opens the panel with its last payload. It does nothing when no
// payload has arrived.
func (p *Presenter) Show() {
	p.setVisible(true)
}

// Toggle flips visibility.
func (p *Presenter) Toggle() {
	p.mu.Lock()
	visible := !p.state.Visible
	p.mu.Unlock()
	p.setVisible(visible)
}

func (p *Presenter) setVisible(v bool) {
	p.mu.Lock()
	if p.state.Mode == ModeNone {
		v = false
	}
	if p.state.Visible == v {
		p.mu.Unlock()
		return
	}
	p.state.Visible = v
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.changed(snap)
}

// Reset clears the panel back to ModeNone.
func (p *Presenter) Reset() {
	p.mu.Lock()
	p.payloadGen++
	p.state = State{Mode: ModeNone}
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.changed(snap)
}

// State returns a snapshot of the panel.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// =============================================================================
// CHART WINDOW
// =============================================================================

// LoadSeries fetches the series for symbol over period and installs it as
// the chart window. Loading is set for the duration of the call.
//
// On failure the previous series stays, Loading clears and an error
// notification is sent. A result that arrives after ctx is done is
// discarded with ctx's error, and one that arrives after another payload or
// load superseded this one is discarded with ErrSuperseded.
func (p *Presenter) LoadSeries(ctx context.Context, symbol string, period market.Period) error {
	p.mu.Lock()
	if p.state.Mode != ModeSingle {
		p.mu.Unlock()
		return ErrNoQuote
	}
	if p.loader == nil {
		p.mu.Unlock()
		return errors.New("no series loader configured")
	}
	if symbol == "" {
		symbol = p.state.Symbol
	}
	p.loadSeq++
	gen, seq := p.payloadGen, p.loadSeq
	p.state.Loading = true
	p.state.Pending = period
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.changed(snap)

	points, err := p.loader.LoadSeries(ctx, symbol, period)

	p.mu.Lock()
	if gen != p.payloadGen || seq != p.loadSeq {
		p.mu.Unlock()
		p.logger.Debug("Discarding superseded series",
			zap.String("symbol", symbol), zap.String("period", string(period)))
		return ErrSuperseded
	}
	p.state.Loading = false
	p.state.Pending = ""

	if ctxErr := ctx.Err(); ctxErr != nil {
		snap = p.snapshotLocked()
		p.mu.Unlock()
		p.changed(snap)
		return ctxErr
	}
	if err != nil {
		snap = p.snapshotLocked()
		p.mu.Unlock()
		p.changed(snap)
		p.logger.Warn("Series fetch failed",
			zap.String("symbol", symbol), zap.String("period", string(period)), zap.Error(err))
		notify.Error(p.notifier, fmt.Sprintf("Failed to load %s chart for %s", period, symbol))
		return err
	}

	p.state.Series = append([]market.SeriesPoint(nil), points...)
	p.state.Period = period
	snap = p.snapshotLocked()
	p.mu.Unlock()
	p.changed(snap)
	return nil
}

func (p *Presenter) snapshotLocked() State {
	s := p.state
	s.Series = append([]market.SeriesPoint(nil), p.state.Series...)
	return s
}

func (p *Presenter) changed(s State) {
	if p.onChange != nil {
		p.onChange(s)
	}
}
