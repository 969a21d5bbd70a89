package main

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	accentColor = lipgloss.Color("#00B3A4")
	mutedColor  = lipgloss.Color("#888888")
	warnColor   = lipgloss.Color("#FFA500")
	alertColor  = lipgloss.Color("#D94A38")
	okColor     = lipgloss.Color("#00AA00")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

func renderBadge(text string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render("[" + text + "]")
}
