package tui

import (
	"amosync/pkg/syncer"
	"github.com/charmbracelet/lipgloss"
)

var (
	accentCyan   = lipgloss.Color("#00D7D7")
	accentViolet = lipgloss.Color("#AF87FF")
	okGreen      = lipgloss.Color("#5FD75F")
	warnAmber    = lipgloss.Color("#FFAF00")
	failRed      = lipgloss.Color("#FF5F5F")
	panelBg      = lipgloss.Color("#1C1C2E")
	dimWhite     = lipgloss.Color("#B0B0B0")
	mutedGray    = lipgloss.Color("#626262")

	headerStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentViolet).
			Background(panelBg).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accentViolet).
			Foreground(panelBg).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFAF"))

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	warningStyle = lipgloss.NewStyle().
			Foreground(warnAmber).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(mutedGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(1, 0, 0, 2)
)

// StatusStyle colours a camera outcome
func StatusStyle(status syncer.Status) lipgloss.Style {
	switch status {
	case syncer.StatusSynced:
		return lipgloss.NewStyle().Foreground(okGreen)
	case syncer.StatusSkipped:
		return lipgloss.NewStyle().Foreground(dimWhite)
	case syncer.StatusPartialFailure, syncer.StatusCancelled:
		return lipgloss.NewStyle().Foreground(warnAmber)
	default:
		return lipgloss.NewStyle().Foreground(failRed).Bold(true)
	}
}

func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return failRed
	case "WARN":
		return warnAmber
	case "SUCCESS":
		return okGreen
	case "INFO":
		return accentCyan
	default:
		return dimWhite
	}
}
