package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockSyncer counts calls and optionally fails or sleeps
type mockSyncer struct {
	delay time.Duration
	err   error
	calls int32
}

func (m *mockSyncer) handle(ctx context.Context, job Job) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("camera-%d", job.CameraID), nil
}

func (m *mockSyncer) count() int {
	return int(atomic.LoadInt32(&m.calls))
}

func runPool(t *testing.T, pool *WorkerPool[string], ids []int) []Result[string] {
	t.Helper()

	var results []Result[string]
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	for i, id := range ids {
		if err := pool.Submit(Job{CameraID: id, Seq: i}); err != nil {
			t.Errorf("Failed to submit job %d: %v", id, err)
		}
	}

	pool.Stop()
	wg.Wait()
	return results
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	mock := &mockSyncer{delay: 10 * time.Millisecond}

	pool, err := NewWorkerPool[string](context.Background(), 3, mock.handle, nil)
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	pool.Start()

	ids := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	results := runPool(t, pool, ids)

	if len(results) != len(ids) {
		t.Errorf("Expected %d results, got %d", len(ids), len(results))
	}

	seen := map[int]bool{}
	for _, result := range results {
		if result.Error != nil {
			t.Errorf("Unexpected error for camera %d: %v", result.Job.CameraID, result.Error)
		}
		if result.Value != fmt.Sprintf("camera-%d", result.Job.CameraID) {
			t.Errorf("Unexpected value %q for camera %d", result.Value, result.Job.CameraID)
		}
		seen[result.Job.CameraID] = true
	}
	if len(seen) != len(ids) {
		t.Errorf("Expected %d distinct cameras, got %d", len(ids), len(seen))
	}

	if mock.count() != len(ids) {
		t.Errorf("Expected %d handler calls, got %d", len(ids), mock.count())
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	mock := &mockSyncer{err: fmt.Errorf("sync error")}

	pool, err := NewWorkerPool[string](context.Background(), 2, mock.handle, nil)
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	pool.Start()

	results := runPool(t, pool, []int{1, 2, 3, 4, 5})

	if len(results) != 5 {
		t.Errorf("Expected 5 results, got %d", len(results))
	}
	for _, result := range results {
		if result.Error == nil {
			t.Error("Expected error in result")
		}
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	mock := &mockSyncer{delay: 100 * time.Millisecond}

	pool, err := NewWorkerPool[string](context.Background(), 5, mock.handle, nil)
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	pool.Start()

	startTime := time.Now()
	results := runPool(t, pool, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	elapsed := time.Since(startTime)

	// 10 jobs of 100ms on 5 workers take about 200ms
	if elapsed > 600*time.Millisecond {
		t.Errorf("Jobs took too long: %v", elapsed)
	}
	if len(results) != 10 {
		t.Errorf("Expected 10 results, got %d", len(results))
	}
}

func TestWorkerPoolRejectsZeroWorkers(t *testing.T) {
	mock := &mockSyncer{}
	if _, err := NewWorkerPool[string](context.Background(), 0, mock.handle, nil); err == nil {
		t.Error("Expected error for zero workers")
	}
}

func TestWorkerPoolCancellationStopsNewJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	var calls int32
	handler := func(ctx context.Context, job Job) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			started <- struct{}{}
			<-release
		}
		return "done", nil
	}

	pool, err := NewWorkerPool[string](ctx, 1, handler, nil)
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	pool.Start()

	var results []Result[string]
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	if err := pool.Submit(Job{CameraID: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := pool.Submit(Job{CameraID: 2}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	cancel()
	close(release)

	if err := pool.Submit(Job{CameraID: 3}); err == nil {
		t.Error("Expected Submit to fail after cancellation")
	}

	pool.Stop()
	wg.Wait()

	// the in-flight camera reports, the queued one never starts
	if len(results) != 1 || results[0].Job.CameraID != 1 {
		t.Errorf("Expected only camera 1 to report, got %+v", results)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 handler call, got %d", got)
	}
}
