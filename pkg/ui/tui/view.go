package tui

import (
	"fmt"
	"strings"
	"time"

	"amosync/pkg/syncer"
	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActivePanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderResultsPanel(width),
		m.renderLogsPanel(width),
	)

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q cancel • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	state := fmt.Sprintf("%d workers", m.workers)
	if m.cancelled {
		state = warningStyle.Render("cancelling")
	}
	return headerStyle.Render(fmt.Sprintf("AMOSYNC  %d/%d cameras  %s", m.Completed(), m.total, state))
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	stat := func(label, value string) string {
		return fmt.Sprintf("%s %s", labelStyle.Render(label), valueStyle.Render(value))
	}

	lines := []string{
		m.progress.ViewAs(m.Fraction()),
		stat("Elapsed:", formatDuration(time.Since(m.startTime))),
		stat("ETA:", formatDuration(m.ETA())),
		"",
	}
	for _, s := range []syncer.Status{
		syncer.StatusSynced, syncer.StatusSkipped, syncer.StatusPartialFailure,
		syncer.StatusFailed, syncer.StatusCancelled,
	} {
		lines = append(lines, fmt.Sprintf("%s %s",
			labelStyle.Render(fmt.Sprintf("%-16s", string(s)+":")),
			StatusStyle(s).Render(fmt.Sprintf("%d", m.counts[s]))))
	}
	lines = append(lines,
		"",
		stat("Months:", fmt.Sprintf("%d merged, %d absent, %d failed", m.mergedMonths, m.absentMonths, m.failedMonths)),
		stat("Entries:", fmt.Sprintf("%d", m.entries)),
		stat("Requests:", fmt.Sprintf("%d (%d errors)", m.requests, m.requestErrors)),
	)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderActivePanel(width int) string {
	title := titleStyle.Render(" IN FLIGHT ")

	active := m.ActiveCameras()
	if len(active) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No cameras running")),
		)
	}

	var rows []string
	for _, item := range active {
		rows = append(rows, fmt.Sprintf("%s camera %-8d %s",
			m.spinner.View(), item.ID, dimStyle.Render(formatDuration(time.Since(item.StartTime)))))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderResultsPanel(width int) string {
	title := titleStyle.Render(" RECENT ")

	recent := m.RecentResults(8)
	if len(recent) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No results yet")),
		)
	}

	var rows []string
	for _, item := range recent {
		res := item.Result
		rows = append(rows, fmt.Sprintf("camera %-8d %s %s",
			res.CameraID,
			StatusStyle(res.Status).Render(fmt.Sprintf("%-16s", res.Status)),
			dimStyle.Render(fmt.Sprintf("%d entries", res.Entries))))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 24
	var lines []string
	for _, entry := range m.logMessages[start:] {
		msg := entry.Message
		if maxMsgLen > 3 && len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(entry.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level)),
			dimStyle.Render(msg)))
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = dimStyle.Render("Nothing to report")
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  q / ctrl+c  stop starting new cameras; press again to leave
  ctrl+l      clear the log panel
  ?           toggle this help

  ` + StatusStyle(syncer.StatusSynced).Render("synced") + `           every planned month merged
  ` + StatusStyle(syncer.StatusPartialFailure).Render("partial_failure") + `  some months failed, rerun to retry
  ` + StatusStyle(syncer.StatusFailed).Render("failed") + `           camera could not be synced
`
	return panelStyle.Width(m.width - 2).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
