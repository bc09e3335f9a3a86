// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Name of the glamour style used for assistant markdown.
	MarkdownStyle string

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style
	ModeReal    lipgloss.Style
	ModeSim     lipgloss.Style

	Sidebar          lipgloss.Style
	SidebarTitle     lipgloss.Style
	SidebarItem      lipgloss.Style
	SidebarActive    lipgloss.Style
	SidebarStreaming lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	FailedLabel    lipgloss.Style
	Timestamp      lipgloss.Style

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style
	Muted      lipgloss.Style
	TableHead  lipgloss.Style

	Input       lipgloss.Style
	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style
	Help        lipgloss.Style
	Spinner     lipgloss.Style

	ToastInfo    lipgloss.Style
	ToastSuccess lipgloss.Style
	ToastWarning lipgloss.Style
	ToastError   lipgloss.Style
}

// NewTheme builds a theme. name is "dark", "light" or "auto" (detect).
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()
	var dark bool
	switch strings.ToLower(name) {
	case "dark":
		dark = true
	case "light":
		dark = false
	default:
		dark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(dark)

	t := &Theme{IsDark: dark, ColorProfile: profile, MarkdownStyle: "light"}
	if dark {
		t.MarkdownStyle = "dark"
	}
	if profile == termenv.Ascii {
		t.MarkdownStyle = "notty"
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderMeta = lipgloss.NewStyle().Foreground(TextSecondary)
	t.ModeReal = lipgloss.NewStyle().Bold(true).Foreground(TextInverse).Background(Emerald).Padding(0, 1)
	t.ModeSim = lipgloss.NewStyle().Bold(true).Foreground(TextInverse).Background(Amber).Padding(0, 1)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary).MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().Foreground(TextPrimary)
	t.SidebarActive = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.SidebarStreaming = lipgloss.NewStyle().Foreground(Cyan)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.FailedLabel = lipgloss.NewStyle().Foreground(Rose).Italic(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan).MarginBottom(1)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.TableHead = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary).Underline(true)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextMuted).Padding(0, 1)
	t.Help = lipgloss.NewStyle().Foreground(TextSecondary).Padding(1, 2)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	toast := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)
	t.ToastInfo = toast.BorderForeground(Cyan).Foreground(Cyan)
	t.ToastSuccess = toast.BorderForeground(Emerald).Foreground(Emerald)
	t.ToastWarning = toast.BorderForeground(Amber).Foreground(Amber)
	t.ToastError = toast.BorderForeground(Rose).Foreground(Rose)
}

// LayoutMode is the responsive layout for a terminal width.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 80 columns: transcript only
	LayoutMedium                   // 80-120 columns: transcript and panel
	LayoutWide                     // > 120 columns: sidebar, transcript and panel
)

// Layout returns the layout for width.
func Layout(width int) LayoutMode {
	switch {
	case width < 80:
		return LayoutNarrow
	case width <= 120:
		return LayoutMedium
	default:
		return LayoutWide
	}
}
