package tui

import (
	"fmt"

	"amosync/pkg/syncer"
	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard runs the bubbletea program. Its methods are safe to call from
// any goroutine; they block until the program accepts the message or exits.
type Dashboard struct {
	program *tea.Program
	model   *Model
}

// New creates a dashboard; opts default to the alternate screen
func New(total, workers int, cancel func(), opts ...tea.ProgramOption) *Dashboard {
	model := NewModel(total, workers, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Dashboard{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run blocks until the batch finishes or the user leaves
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

func (d *Dashboard) CameraStarted(cameraID int) {
	d.program.Send(CameraStartMsg{CameraID: cameraID})
}

func (d *Dashboard) CameraDone(res *syncer.Result) {
	d.program.Send(CameraDoneMsg{Result: res})
}

func (d *Dashboard) Request(statusCode int) {
	d.program.Send(RequestMsg{StatusCode: statusCode})
}

func (d *Dashboard) Log(level, format string, args ...interface{}) {
	d.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Finish closes the dashboard once the batch has returned
func (d *Dashboard) Finish() {
	d.program.Send(FinishedMsg{})
}
