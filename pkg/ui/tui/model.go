// Package tui renders a live dashboard for a batch sync.
package tui

import (
	"fmt"
	"time"

	"amosync/pkg/syncer"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CameraState is where a camera is in the batch
type CameraState int

const (
	CameraActive CameraState = iota
	CameraDone
)

// CameraItem is one camera the dashboard has seen start
type CameraItem struct {
	ID        int
	State     CameraState
	StartTime time.Time
	Result    *syncer.Result
}

// LogMessage is one line in the log panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. All mutation happens in Update, on the
// program goroutine.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	cameras  map[int]*CameraItem
	order    []int
	finished []int
	total    int
	workers  int

	counts        map[syncer.Status]int
	mergedMonths  int
	absentMonths  int
	failedMonths  int
	entries       int
	requests      int
	requestErrors int

	startTime time.Time

	width          int
	height         int
	showHelp       bool
	cancelled      bool
	done           bool
	cancel         func()
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a dashboard for total cameras on workers workers.
// cancel is called when the user asks to stop the batch.
func NewModel(total, workers int, cancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:        s,
		progress:       p,
		cameras:        make(map[int]*CameraItem),
		total:          total,
		workers:        workers,
		counts:         make(map[syncer.Status]int),
		startTime:      time.Now(),
		cancel:         cancel,
		maxLogMessages: 50,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartCamera marks a camera active
func (m *Model) StartCamera(id int) {
	if _, ok := m.cameras[id]; ok {
		return
	}
	m.cameras[id] = &CameraItem{ID: id, State: CameraActive, StartTime: time.Now()}
	m.order = append(m.order, id)
}

// FinishCamera records a camera's result
func (m *Model) FinishCamera(res *syncer.Result) {
	if res == nil {
		return
	}
	item, ok := m.cameras[res.CameraID]
	if !ok {
		item = &CameraItem{ID: res.CameraID, StartTime: time.Now()}
		m.cameras[res.CameraID] = item
		m.order = append(m.order, res.CameraID)
	}
	if item.State == CameraDone {
		return
	}

	item.State = CameraDone
	item.Result = res
	m.finished = append(m.finished, res.CameraID)

	m.counts[res.Status]++
	m.mergedMonths += res.MergedMonths
	m.absentMonths += res.AbsentMonths
	m.failedMonths += len(res.FailedMonths)
	m.entries += res.Entries

	switch res.Status {
	case syncer.StatusSynced, syncer.StatusSkipped:
	case syncer.StatusPartialFailure:
		m.AddLogMessage("WARN", fmt.Sprintf("camera %d: %d months failed", res.CameraID, len(res.FailedMonths)))
	default:
		msg := fmt.Sprintf("camera %d %s", res.CameraID, res.Status)
		if res.Err != nil {
			msg += ": " + res.Err.Error()
		}
		m.AddLogMessage("ERROR", msg)
	}
}

// RecordRequest counts one upstream response; 0 means no response
func (m *Model) RecordRequest(statusCode int) {
	m.requests++
	if statusCode == 0 || statusCode >= 400 {
		m.requestErrors++
	}
}

// AddLogMessage appends to the log panel, keeping the newest maxLogMessages
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// ActiveCameras returns cameras still running, oldest first
func (m *Model) ActiveCameras() []*CameraItem {
	var active []*CameraItem
	for _, id := range m.order {
		if item := m.cameras[id]; item.State == CameraActive {
			active = append(active, item)
		}
	}
	return active
}

// RecentResults returns up to n finished cameras, newest last
func (m *Model) RecentResults(n int) []*CameraItem {
	start := len(m.finished) - n
	if start < 0 {
		start = 0
	}
	out := make([]*CameraItem, 0, len(m.finished)-start)
	for _, id := range m.finished[start:] {
		out = append(out, m.cameras[id])
	}
	return out
}

// Completed is the number of cameras with a result
func (m *Model) Completed() int {
	return len(m.finished)
}

// Fraction of the batch finished, in [0, 1]
func (m *Model) Fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	f := float64(len(m.finished)) / float64(m.total)
	if f > 1 {
		f = 1
	}
	return f
}

// ETA extrapolates from the mean time per finished camera
func (m *Model) ETA() time.Duration {
	done := len(m.finished)
	if done == 0 || done >= m.total {
		return 0
	}
	perCamera := time.Since(m.startTime) / time.Duration(done)
	return perCamera * time.Duration(m.total-done)
}
