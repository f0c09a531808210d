// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderInfo  lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabGap      lipgloss.Style

	// ==========================================================================
	// CONTENT
	// ==========================================================================

	Question     lipgloss.Style
	Answer       lipgloss.Style
	Placeholder  lipgloss.Style
	ResultIndex  lipgloss.Style
	ResultSource lipgloss.Style
	ResultScore  lipgloss.Style
	ResultText   lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	Spinner        lipgloss.Style

	// ==========================================================================
	// STATUS STYLES
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	MutedStyle   lipgloss.Style

	markdownStyle string
	mdMu          sync.Mutex
	md            map[int]*glamour.TermRenderer
}

// NewTheme creates a theme for the given ui.theme setting. "dark" and
// "light" force the background; anything else asks the terminal.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dark":
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		md:           make(map[int]*glamour.TermRenderer),
	}
	switch {
	case colorProfile == termenv.Ascii:
		t.markdownStyle = "notty"
	case isDark:
		t.markdownStyle = "dark"
	default:
		t.markdownStyle = "light"
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderInfo = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Tabs
	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	t.TabInactive = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.TabGap = lipgloss.NewStyle().
		Foreground(Overlay)

	// Content
	t.Question = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.Answer = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ResultIndex = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.ResultSource = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.ResultScore = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ResultText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(3)

	// Input and status bar
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	// Status
	t.SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(Amber)
	t.MutedStyle = lipgloss.NewStyle().Foreground(TextMuted)
}

// Success renders msg with the success marker.
func (t *Theme) Success(msg string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success) + " " + msg
}

// Error renders msg with the error marker.
func (t *Theme) Error(msg string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error + " " + msg)
}

// Warning renders msg with the warning marker.
func (t *Theme) Warning(msg string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning + " " + msg)
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown renders content with glamour wrapped at width. Content is returned
// unchanged when rendering fails.
func (t *Theme) Markdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	t.mdMu.Lock()
	r, ok := t.md[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(t.markdownStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			t.mdMu.Unlock()
			return content
		}
		t.md[width] = r
	}
	t.mdMu.Unlock()

	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
