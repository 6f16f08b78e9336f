package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"amosync/pkg/syncer"
)

// ProgressDisplay is a single-line progress indicator for batch syncs on
// terminals where the dashboard is not wanted
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	done      int
	failed    int
	entries   int
	last      string
	startTime time.Time
}

func NewProgressDisplay(out io.Writer, total int) *ProgressDisplay {
	return &ProgressDisplay{out: out, total: total, startTime: time.Now()}
}

// CameraDone counts a finished camera and redraws the line
func (p *ProgressDisplay) CameraDone(res *syncer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.entries += res.Entries
	if res.Status == syncer.StatusFailed || res.Status == syncer.StatusPartialFailure {
		p.failed++
	}
	p.last = fmt.Sprintf("camera %d %s", res.CameraID, res.Status)
	p.print()
}

// Line renders the current progress without a carriage return
func (p *ProgressDisplay) Line() string {
	const width = 20
	filled := 0
	if p.total > 0 {
		filled = p.done * width / p.total
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", width-filled)

	line := fmt.Sprintf("[%s] %d/%d • %d entries • %s", bar, p.done, p.total, p.entries, FormatDuration(time.Since(p.startTime)))
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d with failures", p.failed))
	}
	if p.last != "" {
		line += " • " + Dim(p.last)
	}
	return line
}

func (p *ProgressDisplay) print() {
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), p.Line())
}

// Complete ends the progress line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
