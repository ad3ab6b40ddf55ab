package tui

import "github.com/charmbracelet/lipgloss"

var (
	subtle     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	textStrong = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F2F2F2"}

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	cellStyle     = lipgloss.NewStyle().Underline(true).Foreground(textStrong)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle     = lipgloss.NewStyle().Foreground(subtle).Italic(true)
	dimStyle      = lipgloss.NewStyle().Foreground(subtle)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle   = lipgloss.NewStyle().Foreground(highlight).Bold(true)
)
