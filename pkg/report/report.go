// Package report persists batch summaries as JSON so a later run can
// inspect them or retry the cameras that did not finish.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"amosync/pkg/logger"
	"amosync/pkg/syncer"
	"github.com/goccy/go-json"
)

const currentVersion = 1

// Report is the stored form of a batch summary
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Totals     map[string]int `json:"totals"`
	Cameras    []Camera       `json:"cameras"`
	Version    int            `json:"version"`
}

// Camera is one camera's line in a report
type Camera struct {
	CameraID     int      `json:"camera_id"`
	Status       string   `json:"status"`
	WindowStart  string   `json:"window_start,omitempty"`
	WindowEnd    string   `json:"window_end,omitempty"`
	MergedMonths int      `json:"merged_months"`
	AbsentMonths int      `json:"absent_months"`
	FailedMonths []string `json:"failed_months"`
	Entries      int      `json:"entries"`
	DurationMS   int64    `json:"duration_ms"`
	Error        string   `json:"error,omitempty"`
}

// FromSummary converts a batch summary
func FromSummary(s *syncer.Summary) *Report {
	r := &Report{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Totals:     map[string]int{},
		Cameras:    make([]Camera, 0, len(s.Results)),
		Version:    currentVersion,
	}

	for _, res := range s.Results {
		c := Camera{
			CameraID:     res.CameraID,
			Status:       string(res.Status),
			MergedMonths: res.MergedMonths,
			AbsentMonths: res.AbsentMonths,
			FailedMonths: make([]string, 0, len(res.FailedMonths)),
			Entries:      res.Entries,
			DurationMS:   res.Duration.Milliseconds(),
		}
		if res.Window != nil {
			c.WindowStart = res.Window.Start.String()
			c.WindowEnd = res.Window.End.String()
		}
		for _, m := range res.FailedMonths {
			c.FailedMonths = append(c.FailedMonths, m.String())
		}
		if res.Err != nil {
			c.Error = res.Err.Error()
		}
		r.Totals[c.Status]++
		r.Cameras = append(r.Cameras, c)
	}
	return r
}

// Unfinished lists cameras worth retrying: anything not synced or skipped
func (r *Report) Unfinished() []int {
	var ids []int
	for _, c := range r.Cameras {
		switch syncer.Status(c.Status) {
		case syncer.StatusSynced, syncer.StatusSkipped:
			continue
		}
		ids = append(ids, c.CameraID)
	}
	return ids
}

// Manager stores reports as <dir>/<run id>.json
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager uses dir, or the per-user data directory when dir is empty
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "reports")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	return &Manager{dir: dir, logger: logger.OrDefault(log)}, nil
}

// Path returns where the report of runID lives
func (m *Manager) Path(runID string) string {
	return filepath.Join(m.dir, runID+".json")
}

// Save writes r under its run id and returns the path
func (m *Manager) Save(r *Report) (string, error) {
	path := m.Path(r.RunID)
	if err := WriteFile(path, r); err != nil {
		return "", err
	}

	m.logger.DebugWithFields("Report saved", map[string]interface{}{
		"run_id": r.RunID,
		"path":   path,
	})
	return path, nil
}

// Load reads the report of runID
func (m *Manager) Load(runID string) (*Report, error) {
	return ReadFile(m.Path(runID))
}

// Latest returns the most recently finished report, or nil when there is none
func (m *Manager) Latest() (*Report, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var reports []*Report
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			m.logger.WithError(err).WithField("file", e.Name()).Warn("Skipping unreadable report")
			continue
		}
		reports = append(reports, r)
	}
	if len(reports) == 0 {
		return nil, nil
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].FinishedAt.After(reports[j].FinishedAt)
	})
	return reports[0], nil
}

// Delete removes the report of runID
func (m *Manager) Delete(runID string) error {
	if err := os.Remove(m.Path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// WriteFile saves r to path through a synced temp file and a rename
func WriteFile(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync report file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace report file: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if r.Version > currentVersion {
		return nil, fmt.Errorf("report version %d is newer than supported version %d", r.Version, currentVersion)
	}
	return &r, nil
}

// getDataDirectory returns the per-user data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "amosync")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "amosync")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "amosync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "amosync")
		}
	}
	return dataDir, nil
}
