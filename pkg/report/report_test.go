package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"amosync/pkg/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary(runID string, finished time.Time) *syncer.Summary {
	return &syncer.Summary{
		RunID:      runID,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Results: []*syncer.Result{
			{CameraID: 1, Status: syncer.StatusSynced, MergedMonths: 3, Entries: 120,
				Window: &syncer.Window{Start: syncer.Month{Year: 2016, Month: 1}, End: syncer.Month{Year: 2016, Month: 3}}},
			{CameraID: 2, Status: syncer.StatusSkipped},
			{CameraID: 3, Status: syncer.StatusPartialFailure, FailedMonths: []syncer.Month{{Year: 2016, Month: 6}}},
			{CameraID: 4, Status: syncer.StatusFailed, Err: errors.New("store write failed")},
			{CameraID: 5, Status: syncer.StatusCancelled},
		},
	}
}

func TestFromSummary(t *testing.T) {
	r := FromSummary(sampleSummary("run-1", time.Now()))

	assert.Equal(t, "run-1", r.RunID)
	require.Len(t, r.Cameras, 5)
	assert.Equal(t, "2016-01", r.Cameras[0].WindowStart)
	assert.Equal(t, "2016-03", r.Cameras[0].WindowEnd)
	assert.Equal(t, []string{"2016-06"}, r.Cameras[2].FailedMonths)
	assert.Equal(t, "store write failed", r.Cameras[3].Error)
	assert.Equal(t, 1, r.Totals["synced"])
	assert.Equal(t, 1, r.Totals["cancelled"])
	assert.Equal(t, []int{3, 4, 5}, r.Unfinished())
}

func TestManager_SaveLoad(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	r := FromSummary(sampleSummary("run-1", time.Now().UTC().Truncate(time.Second)))
	path, err := m.Save(r)
	require.NoError(t, err)
	assert.Equal(t, m.Path("run-1"), path)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := m.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, r.Cameras, loaded.Cameras)
	assert.True(t, r.FinishedAt.Equal(loaded.FinishedAt))
}

func TestManager_Latest(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UTC()
	_, err = m.Save(FromSummary(sampleSummary("old", now.Add(-time.Hour))))
	require.NoError(t, err)
	_, err = m.Save(FromSummary(sampleSummary("new", now)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "junk.json"), []byte("{"), 0644))

	latest, err = m.Latest()
	require.NoError(t, err)
	assert.Equal(t, "new", latest.RunID)

	require.NoError(t, m.Delete("new"))
	require.NoError(t, m.Delete("new"))
	latest, err = m.Latest()
	require.NoError(t, err)
	assert.Equal(t, "old", latest.RunID)
}

func TestReadFile_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id":"x","version":99}`), 0644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}

func TestNewManager_DefaultDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	m, err := NewManager("", nil)
	require.NoError(t, err)
	_, err = os.Stat(m.dir)
	assert.NoError(t, err)
}
