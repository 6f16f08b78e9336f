package syncer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"amosync/pkg/amos"
	"amosync/pkg/archive"
	"amosync/pkg/config"
	"amosync/pkg/logger"
	"amosync/pkg/retry"
	"amosync/pkg/store"
	"amosync/pkg/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAMOS serves a camera record and a handful of monthly archives
type mockAMOS struct {
	server   *httptest.Server
	archives map[string][]byte
	// stalls holds archive paths that never answer
	stalls   map[string]bool
	requests int32
}

func newMockAMOS(t *testing.T) *mockAMOS {
	t.Helper()
	m := &mockAMOS{archives: map[string][]byte{}, stalls: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/webcam_info", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requests, 1)
		if r.URL.Query().Get("id") != "65" {
			w.Write([]byte("<result></result>"))
			return
		}
		w.Write([]byte(`<result><webcam>
  <id>65</id>
  <latitude>38.6389</latitude>
  <longitude>-90.285</longitude>
  <date_added>2016-01-05 10:00:00</date_added>
  <last_capture>2016-03-20 08:30:00</last_capture>
</webcam></result>`))
	})
	mux.HandleFunc("/zipfiles/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requests, 1)
		if m.stalls[r.URL.Path] {
			select {
			case <-time.After(10 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		body, ok := m.archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockAMOS) serveArchive(cameraID, year, month int, body []byte) {
	m.archives["/"+amos.ArchivePath(cameraID, year, month)] = body
}

func (m *mockAMOS) stallArchive(cameraID, year, month int) {
	m.stalls["/"+amos.ArchivePath(cameraID, year, month)] = true
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestEndToEndSyncIntoLocalStore(t *testing.T) {
	mock := newMockAMOS(t)
	mock.serveArchive(65, 2016, 1, zipOf(t, map[string]string{
		"20160105_100000.jpg": "first",
		"20160131_235959.jpg": "last",
	}))
	// February has no archive; March is not a zip
	mock.serveArchive(65, 2016, 3, []byte("this is not a zip file"))

	log := logger.NewNopLogger()
	client := amos.NewClient(amos.Options{
		BaseURL: mock.server.URL,
		Timeout: 5 * time.Second,
		Backoff: &retry.ConstantBackoff{Delay: time.Millisecond},
		Logger:  log,
	})

	root := t.TempDir()
	st, err := store.NewLocal(root, log)
	require.NoError(t, err)

	fetcher := archive.NewDefault(client, config.UpstreamConfig{MemoryLimitMB: 16, ScratchDir: t.TempDir()}, log)
	executor := syncer.NewExecutor(client, fetcher, st, log)

	batch, err := syncer.NewBatch(executor, syncer.Options{Workers: 2, SkipExisting: true}, log)
	require.NoError(t, err)

	summary, err := batch.Run(context.Background(), []int{65, 99})
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)

	byID := map[int]*syncer.Result{}
	for _, res := range summary.Results {
		byID[res.CameraID] = res
	}

	synced := byID[65]
	require.NotNil(t, synced)
	assert.Equal(t, syncer.StatusPartialFailure, synced.Status)
	assert.Equal(t, 1, synced.MergedMonths)
	assert.Equal(t, 1, synced.AbsentMonths)
	assert.Equal(t, []syncer.Month{{Year: 2016, Month: 3}}, synced.FailedMonths)
	assert.Equal(t, 2, synced.Entries)
	require.NotNil(t, synced.Window)
	assert.Equal(t, "2016-01", synced.Window.Start.String())
	assert.Equal(t, "2016-03", synced.Window.End.String())

	assert.Equal(t, syncer.StatusFailed, byID[99].Status)
	assert.NoDirExists(t, filepath.Join(root, "99"))

	assert.FileExists(t, filepath.Join(root, "65", store.RecordName))
	for name, want := range map[string]string{
		"20160105_100000.jpg": "first",
		"20160131_235959.jpg": "last",
	} {
		got, err := os.ReadFile(filepath.Join(root, "65", name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got))
	}

	// a second run finds info.json and leaves the camera alone
	before := atomic.LoadInt32(&mock.requests)
	summary, err = batch.Run(context.Background(), []int{65})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(syncer.StatusSkipped))
	assert.Equal(t, before+1, atomic.LoadInt32(&mock.requests), "only the record lookup is repeated")
}

func TestEndToEndTimedOutMonthDoesNotStopCamera(t *testing.T) {
	mock := newMockAMOS(t)
	mock.stallArchive(65, 2016, 1)
	mock.serveArchive(65, 2016, 2, zipOf(t, map[string]string{"20160201_000000.jpg": "feb"}))
	mock.serveArchive(65, 2016, 3, zipOf(t, map[string]string{"20160301_000000.jpg": "mar"}))

	log := logger.NewNopLogger()
	client := amos.NewClient(amos.Options{
		BaseURL: mock.server.URL,
		Timeout: 200 * time.Millisecond,
		Logger:  log,
	})

	root := t.TempDir()
	st, err := store.NewLocal(root, log)
	require.NoError(t, err)

	fetcher := archive.NewDefault(client, config.UpstreamConfig{MemoryLimitMB: 16, ScratchDir: t.TempDir()}, log)
	res, err := syncer.NewExecutor(client, fetcher, st, log).Sync(context.Background(), 65, nil, nil, true)
	require.NoError(t, err)

	assert.Equal(t, syncer.StatusPartialFailure, res.Status)
	assert.Equal(t, 2, res.MergedMonths)
	assert.Equal(t, []syncer.Month{{Year: 2016, Month: 1}}, res.FailedMonths)
	assert.FileExists(t, filepath.Join(root, "65", "20160201_000000.jpg"))
	assert.FileExists(t, filepath.Join(root, "65", "20160301_000000.jpg"))
}
