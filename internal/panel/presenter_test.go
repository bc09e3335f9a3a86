// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/notify"
)

func price(v float64) *float64 { return &v }

func sampleQuote() market.Quote {
	return market.Quote{
		Symbol:       "TCS",
		CurrentPrice: price(3500),
		History1D:    []market.SeriesPoint{{Time: "09:15", Value: 3490}, {Time: "09:20", Value: 3500}},
	}
}

// =============================================================================
// PAYLOAD TESTS
// =============================================================================

func TestPresenter_StartsEmptyAndHidden(t *testing.T) {
	p := NewPresenter(nil)
	s := p.State()
	assert.Equal(t, ModeNone, s.Mode)
	assert.Nil(t, s.Data)
	assert.False(t, s.Visible)

	p.Show()
	assert.False(t, p.State().Visible, "nothing to show yet")
}

func TestPresenter_ReplacementDoesNotMerge(t *testing.T) {
	p := NewPresenter(nil)
	p.SetPayload(market.Movers{Gainers: []market.Mover{{Symbol: "ITC", ChangePct: 3}}})

	q := sampleQuote()
	p.SetPayload(q)

	s := p.State()
	assert.Equal(t, ModeSingle, s.Mode)
	assert.Equal(t, q, s.Data)
	assert.True(t, s.Visible)
	assert.Equal(t, market.DefaultPeriod, s.Period)
	assert.Equal(t, q.History1D, s.Series)

	p.SetPayload(market.Holdings{})
	s = p.State()
	assert.Equal(t, ModeHoldings, s.Mode)
	assert.Equal(t, market.Holdings{}, s.Data)
	assert.Empty(t, s.Series, "chart window belongs to the replaced quote")
	assert.Empty(t, s.Symbol)
}

func TestPresenter_DismissKeepsData(t *testing.T) {
	p := NewPresenter(nil)
	p.SetPayload(market.ScreenerList{Title: "Bullish Stocks"})
	p.Dismiss()

	s := p.State()
	assert.False(t, s.Visible)
	assert.Equal(t, ModeList, s.Mode)
	assert.Equal(t, market.ScreenerList{Title: "Bullish Stocks"}, s.Data)

	p.Show()
	assert.True(t, p.State().Visible)
	p.Toggle()
	assert.False(t, p.State().Visible)

	p.Reset()
	s = p.State()
	assert.Equal(t, ModeNone, s.Mode)
	assert.Nil(t, s.Data)
}

func TestPresenter_OnChange(t *testing.T) {
	var modes []Mode
	p := NewPresenter(nil, OnChange(func(s State) { modes = append(modes, s.Mode) }))
	p.SetPayload(market.Holdings{})
	p.Dismiss()
	p.Dismiss() // no change, no callback
	assert.Equal(t, []Mode{ModeHoldings, ModeHoldings}, modes)
}

// =============================================================================
// SERIES TESTS
// =============================================================================

func TestPresenter_LoadSeriesReplacesWindow(t *testing.T) {
	var sawLoading bool
	var p *Presenter
	loader := SeriesLoaderFunc(func(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error) {
		s := p.State()
		sawLoading = s.Loading && s.Pending == market.Period1MO
		assert.Equal(t, "TCS", symbol)
		return []market.SeriesPoint{{Time: "2025-01-01", Value: 3300}}, nil
	})
	p = NewPresenter(loader)
	p.SetPayload(sampleQuote())

	require.NoError(t, p.LoadSeries(context.Background(), "", market.Period1MO))
	assert.True(t, sawLoading, "loading flag should bracket the fetch")

	s := p.State()
	assert.False(t, s.Loading)
	assert.Equal(t, market.Period1MO, s.Period)
	assert.Equal(t, []market.SeriesPoint{{Time: "2025-01-01", Value: 3300}}, s.Series)
}

func TestPresenter_LoadSeriesFailureKeepsPriorSeries(t *testing.T) {
	rec := &notify.Recorder{}
	boom := errors.New("upstream 500")
	p := NewPresenter(SeriesLoaderFunc(func(context.Context, string, market.Period) ([]market.SeriesPoint, error) {
		return nil, boom
	}), WithNotifier(rec))
	q := sampleQuote()
	p.SetPayload(q)

	err := p.LoadSeries(context.Background(), "TCS", market.Period1Y)
	assert.ErrorIs(t, err, boom)

	s := p.State()
	assert.False(t, s.Loading)
	assert.Equal(t, market.Period1D, s.Period)
	assert.Equal(t, q.History1D, s.Series)
	assert.Len(t, rec.Messages(notify.LevelError), 1)
}

func TestPresenter_LoadSeriesRequiresQuote(t *testing.T) {
	p := NewPresenter(SeriesLoaderFunc(func(context.Context, string, market.Period) ([]market.SeriesPoint, error) {
		t.Fatal("loader must not be called")
		return nil, nil
	}))
	p.SetPayload(market.Holdings{})
	assert.ErrorIs(t, p.LoadSeries(context.Background(), "TCS", market.Period5D), ErrNoQuote)
}

func TestPresenter_LateResultAfterCancelIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPresenter(SeriesLoaderFunc(func(context.Context, string, market.Period) ([]market.SeriesPoint, error) {
		cancel() // consumer goes away while the fetch is in flight
		return []market.SeriesPoint{{Value: 1}}, nil
	}))
	q := sampleQuote()
	p.SetPayload(q)

	err := p.LoadSeries(ctx, "TCS", market.Period5Y)
	assert.ErrorIs(t, err, context.Canceled)

	s := p.State()
	assert.Equal(t, q.History1D, s.Series)
	assert.Equal(t, market.Period1D, s.Period)
	assert.False(t, s.Loading)
}

func TestPresenter_LateResultAfterNewPayloadIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p := NewPresenter(SeriesLoaderFunc(func(context.Context, string, market.Period) ([]market.SeriesPoint, error) {
		close(started)
		<-release
		return []market.SeriesPoint{{Value: 999}}, nil
	}))
	p.SetPayload(sampleQuote())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.ErrorIs(t, p.LoadSeries(context.Background(), "TCS", market.Period6MO), ErrSuperseded)
	}()

	<-started
	other := market.Quote{Symbol: "INFY"}
	p.SetPayload(other)
	close(release)
	wg.Wait()

	s := p.State()
	assert.Equal(t, other, s.Data)
	assert.Empty(t, s.Series)
	assert.Equal(t, market.Period1D, s.Period)
	assert.False(t, s.Loading)
}

func TestPresenter_OlderLoadSupersededByNewer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p := NewPresenter(SeriesLoaderFunc(func(_ context.Context, _ string, period market.Period) ([]market.SeriesPoint, error) {
		if period == market.Period6MO {
			close(started)
			<-release
			return []market.SeriesPoint{{Value: 6}}, nil
		}
		return []market.SeriesPoint{{Value: 1}}, nil
	}))
	p.SetPayload(sampleQuote())

	errc := make(chan error, 1)
	go func() { errc <- p.LoadSeries(context.Background(), "TCS", market.Period6MO) }()

	<-started
	require.NoError(t, p.LoadSeries(context.Background(), "TCS", market.Period1Y))
	close(release)
	assert.ErrorIs(t, <-errc, ErrSuperseded)

	s := p.State()
	assert.Equal(t, market.Period1Y, s.Period)
	assert.Equal(t, []market.SeriesPoint{{Value: 1}}, s.Series)
	assert.False(t, s.Loading)
}
