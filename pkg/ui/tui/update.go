package tui

import (
	"time"

	"amosync/pkg/syncer"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CameraStartMsg is sent when a worker picks up a camera
type CameraStartMsg struct {
	CameraID int
}

// CameraDoneMsg is sent when a camera has a result
type CameraDoneMsg struct {
	Result *syncer.Result
}

// RequestMsg is sent for each upstream response
type RequestMsg struct {
	StatusCode int
}

// LogMsg is sent to add a log line
type LogMsg struct {
	Level   string
	Message string
}

// FinishedMsg is sent once the batch has returned
type FinishedMsg struct{}

// TickMsg refreshes elapsed times
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width/2-20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case CameraStartMsg:
		m.StartCamera(msg.CameraID)
		return m, nil

	case CameraDoneMsg:
		m.FinishCamera(msg.Result)
		return m, nil

	case RequestMsg:
		m.RecordRequest(msg.StatusCode)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case FinishedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress: the first q cancels the batch, the second leaves the dashboard
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.cancelled || m.done {
			return m, tea.Quit
		}
		m.cancelled = true
		if m.cancel != nil {
			m.cancel()
		}
		m.AddLogMessage("WARN", "cancelling: cameras in flight will finish, press q again to leave")
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
