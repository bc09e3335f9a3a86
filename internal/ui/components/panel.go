// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/ui/styles"
	"github.com/jeranaias/tradedesk/internal/util"
)

// PanelWidth is the side panel's width including its border.
const PanelWidth = 46

// sparkBlocks are the sparkline levels, lowest first.
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderPanel renders the side panel for st. It returns "" when the panel
// is hidden or empty.
func RenderPanel(t *styles.Theme, st panel.State, periods []market.Period, height int) string {
	if !st.Visible || st.Mode == panel.ModeNone || st.Data == nil {
		return ""
	}
	inner := PanelWidth - 4

	var body string
	switch d := st.Data.(type) {
	case market.Holdings:
		body = renderHoldings(t, d, inner)
	case market.Quote:
		body = renderQuote(t, d, st, periods, inner)
	case market.ScreenerList:
		body = renderList(t, d, inner)
	case market.Movers:
		body = renderMovers(t, d, inner)
	default:
		return ""
	}
	return t.Panel.Width(PanelWidth - 2).MaxHeight(max(height, 3)).Render(body)
}

// =============================================================================
// HOLDINGS
// =============================================================================

func renderHoldings(t *styles.Theme, hs market.Holdings, width int) string {
	var b strings.Builder
	b.WriteString(t.PanelTitle.Render("Holdings"))
	b.WriteString("\n")
	if len(hs) == 0 {
		b.WriteString(t.Muted.Render("No holdings"))
		return b.String()
	}

	s := market.Summarize(hs)
	b.WriteString(kv(t, "Current value", t.Value.Render(market.FormatPrice(s.CurrentValue))))
	b.WriteString(kv(t, "Invested", t.Value.Render(market.FormatPrice(s.Invested))))
	b.WriteString(kv(t, "Total P&L", signed(market.FormatSigned(s.TotalPnL), s.TotalPnL)))
	b.WriteString(kv(t, "Day's P&L", signed(market.FormatSigned(s.DayChange), s.DayChange)))
	b.WriteString("\n")

	cols := []int{10, 6, 12, 12}
	b.WriteString(t.TableHead.Render(row(cols, "Symbol", "Qty", "LTP", "P&L")))
	b.WriteString("\n")
	for _, h := range hs {
		line := row(cols[:3], h.TradingSymbol, market.FormatQuantity(h.Quantity), market.FormatAmount(h.LastPrice))
		b.WriteString(line)
		b.WriteString(signed(util.FitWidthLeft(market.FormatSigned(h.PnL), cols[3]), h.PnL))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// SINGLE QUOTE
// =============================================================================

func renderQuote(t *styles.Theme, q market.Quote, st panel.State, periods []market.Period, width int) string {
	var b strings.Builder
	title := q.Symbol
	if q.Name != "" {
		title = q.Name + " (" + q.Symbol + ")"
	}
	b.WriteString(t.PanelTitle.Render(util.TruncateWidth(title, width)))
	b.WriteString("\n")

	price := t.Value.Bold(true).Render(market.FormatOptionalPrice(q.CurrentPrice))
	if abs, pct, ok := q.Change(); ok {
		price += "  " + signed(fmt.Sprintf("%s (%s)", market.FormatSigned(abs), market.FormatPct(pct)), abs)
	}
	b.WriteString(price)
	b.WriteString("\n\n")

	b.WriteString(kv(t, "Open", market.FormatOptionalPrice(q.Open)))
	b.WriteString(kv(t, "Prev close", market.FormatOptionalPrice(q.PreviousClose)))
	b.WriteString(kv(t, "Day range", rangeOf(q.DayLow, q.DayHigh)))
	b.WriteString(kv(t, "52w range", rangeOf(q.Low52Week, q.High52Week)))
	if cr, ok := q.MarketCapCrores(); ok {
		b.WriteString(kv(t, "Market cap", "₹"+market.FormatAmount(cr)+" Cr"))
	}
	if q.PERatio != nil {
		b.WriteString(kv(t, "P/E", fmt.Sprintf("%.2f", *q.PERatio)))
	}
	if q.DividendYield != nil {
		b.WriteString(kv(t, "Div. yield", fmt.Sprintf("%.2f%%", *q.DividendYield)))
	}
	b.WriteString("\n")

	b.WriteString(renderPeriods(t, periods, st))
	b.WriteString("\n")
	b.WriteString(renderChart(t, st.Series, width))
	return b.String()
}

func renderPeriods(t *styles.Theme, periods []market.Period, st panel.State) string {
	parts := make([]string, 0, len(periods)+1)
	for _, p := range periods {
		label := string(p)
		switch {
		case st.Loading && p == st.Pending:
			parts = append(parts, t.SidebarStreaming.Render("["+label+"…]"))
		case p == st.Period:
			parts = append(parts, t.SidebarActive.Render("["+label+"]"))
		default:
			parts = append(parts, t.Muted.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func renderChart(t *styles.Theme, points []market.SeriesPoint, width int) string {
	lo, hi, ok := market.SeriesRange(points)
	if !ok {
		return t.Muted.Render("No price history")
	}
	first, last := points[0].Value, points[len(points)-1].Value
	line := lipgloss.NewStyle().Foreground(styles.Signed(last - first)).Render(Sparkline(points, width))
	scale := t.Muted.Render(fmt.Sprintf("low %s  high %s", market.FormatAmount(lo), market.FormatAmount(hi)))
	return line + "\n" + scale
}

// Sparkline draws values as one row of block characters, resampled to at
// most width columns.
func Sparkline(points []market.SeriesPoint, width int) string {
	lo, hi, ok := market.SeriesRange(points)
	if !ok || width <= 0 {
		return ""
	}
	n := min(len(points), width)
	out := make([]rune, n)
	for i := range n {
		// Average the bucket of points that maps to column i.
		from := i * len(points) / n
		to := max((i+1)*len(points)/n, from+1)
		var sum float64
		for _, p := range points[from:to] {
			sum += p.Value
		}
		v := sum / float64(to-from)
		level := 0
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1)))
		}
		out[i] = sparkBlocks[level]
	}
	return string(out)
}

// =============================================================================
// LIST AND MOVERS
// =============================================================================

func renderList(t *styles.Theme, l market.ScreenerList, width int) string {
	var b strings.Builder
	title := l.Title
	if title == "" {
		title = "Screener"
	}
	b.WriteString(t.PanelTitle.Render(util.TruncateWidth(title, width)))
	b.WriteString("\n")
	if len(l.Rows) == 0 {
		b.WriteString(t.Muted.Render("No matches"))
		return b.String()
	}
	cols := []int{12, 14, 12}
	b.WriteString(t.TableHead.Render(row(cols, "Symbol", "Price", "Signal")))
	b.WriteString("\n")
	for _, r := range l.Rows {
		b.WriteString(row(cols[:2], r.Symbol, market.FormatAmount(r.Price)))
		b.WriteString(" " + signalStyle(r.Signal).Render(util.FitWidth(r.Signal, cols[2]-1)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMovers(t *styles.Theme, m market.Movers, width int) string {
	var b strings.Builder
	b.WriteString(t.PanelTitle.Render("Market movers"))
	b.WriteString("\n")
	section := func(title string, movers []market.Mover) {
		b.WriteString(t.Label.Bold(true).Render(title))
		b.WriteString("\n")
		if len(movers) == 0 {
			b.WriteString(t.Muted.Render("None"))
			b.WriteString("\n")
			return
		}
		cols := []int{12, 14, 10}
		for _, mv := range movers {
			b.WriteString(row(cols[:2], mv.Symbol, market.FormatAmount(mv.Price)))
			b.WriteString(signed(util.FitWidthLeft(market.FormatPct(mv.ChangePct), cols[2]), mv.ChangePct))
			b.WriteString("\n")
		}
	}
	section("Top gainers", m.Gainers)
	b.WriteString("\n")
	section("Top losers", m.Losers)
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// HELPERS
// =============================================================================

// row lays out cells in fixed columns; the first is left-aligned, the rest
// right-aligned.
func row(widths []int, cells ...string) string {
	var b strings.Builder
	for i, c := range cells {
		if i >= len(widths) {
			break
		}
		if i == 0 {
			b.WriteString(util.FitWidth(c, widths[i]))
		} else {
			b.WriteString(util.FitWidthLeft(c, widths[i]))
		}
	}
	return b.String()
}

func kv(t *styles.Theme, label, value string) string {
	return t.Label.Render(util.FitWidth(label, 14)) + value + "\n"
}

func signed(s string, v float64) string {
	return lipgloss.NewStyle().Foreground(styles.Signed(v)).Render(s)
}

func rangeOf(lo, hi *float64) string {
	if lo == nil || hi == nil {
		return "N/A"
	}
	return market.FormatAmount(*lo) + " - " + market.FormatAmount(*hi)
}

func signalStyle(signal string) lipgloss.Style {
	switch strings.ToLower(signal) {
	case "bullish", "buy", "strong buy":
		return lipgloss.NewStyle().Foreground(styles.Gain)
	case "bearish", "sell", "strong sell":
		return lipgloss.NewStyle().Foreground(styles.Loss)
	default:
		return lipgloss.NewStyle().Foreground(styles.TextSecondary)
	}
}
