// Package tui provides TUI components and styles for the sb3pack CLI.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors for the TUI theme.
var (
	ColorPrimary = lipgloss.Color("#FF8C1A") // Orange
	ColorSuccess = lipgloss.Color("#59C059") // Green
	ColorWarning = lipgloss.Color("#FFBF00") // Yellow
	ColorError   = lipgloss.Color("#FF4C4C") // Red
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
	ColorBorder  = lipgloss.Color("#374151") // Dark gray
)

// Styles for common TUI elements.
var (
	// Title style for section headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	// Success message style
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	// Muted text style
	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Help text style
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)

	// Input prompt style
	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	// Spinner style
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)
)

// PhaseStyle returns the style for a packaging phase label.
func PhaseStyle(done bool) lipgloss.Style {
	if done {
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	}
	return lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
}
