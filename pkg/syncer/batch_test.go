package syncer

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"amosync/pkg/amos"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch_RejectsBadWorkers(t *testing.T) {
	for _, workers := range []int{0, -3} {
		_, err := NewBatch(&stubSyncer{}, Options{Workers: workers}, nil)
		assert.ErrorIs(t, err, errs.ErrConfig)
	}
}

func TestNewBatch_RejectsInvertedRange(t *testing.T) {
	_, err := NewBatch(&stubSyncer{}, Options{Workers: 1, Start: date(2017, 1, 1), End: date(2016, 1, 1)}, nil)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

// stubSyncer returns canned statuses and can block until released
type stubSyncer struct {
	statuses map[int]Status
	failures map[int]error
	calls    int32
	block    chan struct{}
	started  chan int
}

func (s *stubSyncer) Sync(ctx context.Context, cameraID int, start, end *time.Time, skipExisting bool) (*Result, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.started != nil {
		s.started <- cameraID
	}
	if s.block != nil {
		<-s.block
	}
	if err := s.failures[cameraID]; err != nil {
		return &Result{CameraID: cameraID, Status: StatusFailed, Err: err}, err
	}
	status, ok := s.statuses[cameraID]
	if !ok {
		status = StatusSynced
	}
	return &Result{CameraID: cameraID, Status: status}, nil
}

func TestBatch_IsolatesFailures(t *testing.T) {
	stub := &stubSyncer{
		statuses: map[int]Status{2: StatusSkipped, 3: StatusPartialFailure},
		failures: map[int]error{4: errs.ErrNotFound, 5: errs.ErrStoreWrite},
	}

	m := metrics.New()
	var seen []int
	var started int32
	var mu sync.Mutex
	b, err := NewBatch(stub, Options{
		Workers: 3,
		OnStart: func(int) { atomic.AddInt32(&started, 1) },
		OnResult: func(r *Result) {
			mu.Lock()
			seen = append(seen, r.CameraID)
			mu.Unlock()
		},
	}, nil)
	require.NoError(t, err)
	b.SetMetrics(m)

	summary, err := b.Run(context.Background(), []int{1, 2, 3, 4, 5, 6, 1})
	require.NoError(t, err)
	require.Len(t, summary.Results, 6, "duplicates are synced once")

	ids := make([]int, len(summary.Results))
	for i, r := range summary.Results {
		ids[i] = r.CameraID
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, ids, "summary keeps submission order")

	assert.Equal(t, 2, summary.Count(StatusSynced))
	assert.Equal(t, 1, summary.Count(StatusSkipped))
	assert.Equal(t, 1, summary.Count(StatusPartialFailure))
	assert.Equal(t, 2, summary.Count(StatusFailed))
	assert.ErrorIs(t, summary.Results[3].Err, errs.ErrNotFound)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, seen, 6)
	assert.Equal(t, int32(6), atomic.LoadInt32(&started))

	expected := `
# HELP amosync_cameras_total Cameras processed, by result
# TYPE amosync_cameras_total counter
amosync_cameras_total{result="failed"} 2
amosync_cameras_total{result="partial_failure"} 1
amosync_cameras_total{result="skipped"} 1
amosync_cameras_total{result="synced"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "amosync_cameras_total"))
}

func TestBatch_CancelStopsUnstartedCameras(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stub := &stubSyncer{block: make(chan struct{}), started: make(chan int, 10)}
	b, err := NewBatch(stub, Options{Workers: 1}, nil)
	require.NoError(t, err)

	done := make(chan *Summary)
	go func() {
		summary, err := b.Run(ctx, []int{1, 2, 3, 4})
		assert.NoError(t, err)
		done <- summary
	}()

	assert.Equal(t, 1, <-stub.started)
	cancel()
	close(stub.block)

	summary := <-done
	require.Len(t, summary.Results, 4)
	assert.Equal(t, StatusSynced, summary.Results[0].Status, "in-flight camera finishes")
	assert.Equal(t, 3, summary.Count(StatusCancelled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
	assert.ErrorIs(t, summary.Results[3].Err, context.Canceled)
}

func TestBatch_WithExecutor(t *testing.T) {
	dir := &fakeDirectory{records: map[int]*amos.CameraRecord{
		1: record(date(2016, 1, 1), date(2016, 2, 1)),
		2: record(date(2016, 1, 1), date(2016, 2, 1)),
	}}
	fetcher := newFakeFetcher()
	fetcher.add(1, 2016, 1, "a.jpg")
	fetcher.add(2, 2016, 2, "b.jpg")
	st := &failingStore{Store: newLocal(t), failFor: map[int]bool{2: true}}

	opts, err := OptionsFromConfig(config.SyncConfig{Workers: 2, SkipExisting: true, StartDate: "2016-01-01"})
	require.NoError(t, err)

	b, err := NewBatch(NewExecutor(dir, fetcher, st, nil), opts, nil)
	require.NoError(t, err)

	summary, err := b.Run(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, StatusSynced, summary.Results[0].Status)
	assert.Equal(t, StatusFailed, summary.Results[1].Status)
	assert.ErrorIs(t, summary.Results[1].Err, errs.ErrStoreWrite)
	assert.Equal(t, StatusFailed, summary.Results[2].Status)
	assert.ErrorIs(t, summary.Results[2].Err, errs.ErrNotFound)
}
