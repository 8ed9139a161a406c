package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	StepActiveStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	StepDoneStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StepPendingStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	CardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	CardKeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	CardBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimGray).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	ScoreLabelStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LevelGreenStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	LevelYellowStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	LevelGrayStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	BadgeOnStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	BadgeOffStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	ScrollBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	TableBorderStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)
)
