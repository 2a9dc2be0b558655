package tui

import (
	"github.com/DachengChen/nlsql/console"
	"github.com/charmbracelet/lipgloss"
)

// Palette inspired by standard terminal dark themes.
var (
	ColorPrimary   = lipgloss.Color("255") // White
	ColorSecondary = lipgloss.Color("240") // Dark Gray
	ColorAccent    = lipgloss.Color("39")  // Blue / Cyan
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("196") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDim       = lipgloss.Color("240")

	// Only used for highlighting the selected row.
	ColorHighlightBg = lipgloss.Color("236")
)

var (
	StyleNormal = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDim)
	StyleBold   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	// Status & Feedback
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary)

	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).MarginBottom(1)
	StylePrompt = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	// Tab Bar
	StyleTabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1)

	StyleTabInactive = lipgloss.NewStyle().
				Foreground(ColorDim).
				Padding(0, 1)

	// Selected row in lists (profiles, sheets, tables, history)
	StyleListItemActive = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Background(ColorHighlightBg).
				Bold(true)

	StyleInputFocused = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	StyleStatusBar = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	StyleHelpKey = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleHelpDesc = lipgloss.NewStyle().
			Foreground(ColorDim)

	// Panel separating the SQL editor from its history list
	StylePanel = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorSecondary).
			PaddingLeft(1)
)

// noticeStyle colors a notice by level in the status bar.
func noticeStyle(l console.Level) lipgloss.Style {
	switch l {
	case console.LevelSuccess:
		return StyleSuccess
	case console.LevelWarning:
		return StyleWarning
	case console.LevelError:
		return StyleError
	default:
		return StyleNormal
	}
}

// noticeIcon prefixes notices in the status bar and the notice list.
func noticeIcon(l console.Level) string {
	switch l {
	case console.LevelSuccess:
		return "✓"
	case console.LevelWarning:
		return "!"
	case console.LevelError:
		return "✗"
	default:
		return "·"
	}
}
