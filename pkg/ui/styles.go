// Package ui provides the terminal user interface for chat timelines.
package ui

import "github.com/charmbracelet/lipgloss"

// Dracula palette, matching the HTML export.
var (
	ColorBg          = lipgloss.Color("#282a36")
	ColorBgDark      = lipgloss.Color("#21222c")
	ColorBgHighlight = lipgloss.Color("#44475a")
	ColorText        = lipgloss.Color("#f8f8f2")
	ColorSubtext     = lipgloss.Color("#6272a4")
	ColorPrimary     = lipgloss.Color("#bd93f9")
	ColorSecondary   = lipgloss.Color("#8be9fd")
	ColorAccent      = lipgloss.Color("#ff79c6")
	ColorBookmark    = lipgloss.Color("#f1fa8c")
	ColorUser        = lipgloss.Color("#50fa7b")
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtext)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBgDark).
			Background(ColorText)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext)

	LockedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Underline(true)
)
