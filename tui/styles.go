package tui

import "github.com/charmbracelet/lipgloss"

const (
	recColor     = "#EF4444" // Red
	pausedColor  = "#F59E0B" // Amber
	savedColor   = "#10B981" // Green
	primaryColor = "#7C3AED" // Purple
	dimColor     = "#6B7280" // Gray
)

var (
	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	recBadge       = badgeStyle.Background(lipgloss.Color(recColor))
	pausedBadge    = badgeStyle.Background(lipgloss.Color(pausedColor))
	savedBadge     = badgeStyle.Background(lipgloss.Color(savedColor))
	countdownBadge = badgeStyle.Background(lipgloss.Color(primaryColor))
	idleBadge      = badgeStyle.Background(lipgloss.Color("#374151"))

	timerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(recColor))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)
)
