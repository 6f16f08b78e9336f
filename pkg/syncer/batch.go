package syncer

import (
	"context"
	"fmt"
	"time"

	"amosync/internal/downloader"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"amosync/pkg/metrics"
	"github.com/google/uuid"
)

// CameraSyncer syncs one camera; *Executor implements it
type CameraSyncer interface {
	Sync(ctx context.Context, cameraID int, start, end *time.Time, skipExisting bool) (*Result, error)
}

// Options control a batch run
type Options struct {
	Workers      int
	Start        *time.Time
	End          *time.Time
	SkipExisting bool
	// OnStart is called from a worker goroutine as a camera begins
	OnStart func(cameraID int)
	// OnResult is called from the collecting goroutine as each camera finishes
	OnResult func(*Result)
}

// OptionsFromConfig reads workers, skip_existing and the date range from cfg
func OptionsFromConfig(cfg config.SyncConfig) (Options, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Workers:      cfg.Workers,
		Start:        start,
		End:          end,
		SkipExisting: cfg.SkipExisting,
	}, nil
}

// Summary is the per-camera outcome of a batch, in submission order
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*Result
}

// Count returns how many cameras ended with status
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Batch syncs many cameras on a bounded worker pool
type Batch struct {
	syncer  CameraSyncer
	opts    Options
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewBatch validates opts before any work starts
func NewBatch(syncer CameraSyncer, opts Options, log logger.Logger) (*Batch, error) {
	if opts.Workers < 1 {
		return nil, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("workers must be >= 1, got %d", opts.Workers))
	}
	if opts.Start != nil && opts.End != nil && opts.End.Before(*opts.Start) {
		return nil, errs.New(errs.ErrorTypeConfig, "end date is before start date")
	}
	return &Batch{
		syncer: syncer,
		opts:   opts,
		logger: logger.OrDefault(log).WithField("component", "batch"),
	}, nil
}

// SetMetrics attaches a metrics sink
func (b *Batch) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// Run syncs every camera in ids. One camera's failure never stops the
// others. Cancelling ctx stops cameras from starting; those are reported
// as cancelled. The summary is returned even when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, ids []int) (*Summary, error) {
	ids = dedupe(ids)
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]*Result, len(ids)),
	}
	log := b.logger.WithField("run_id", summary.RunID)

	logger.LogComponentStart(log, "batch", map[string]interface{}{
		"cameras":       len(ids),
		"workers":       b.opts.Workers,
		"skip_existing": b.opts.SkipExisting,
	})

	pool, err := downloader.NewWorkerPool[*Result](ctx, b.opts.Workers, b.syncOne, log)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "invalid worker pool")
	}
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, id := range ids {
			if err := pool.Submit(downloader.Job{CameraID: id, Seq: i}); err != nil {
				log.WithError(err).Info("batch cancelled, not starting remaining cameras")
				return
			}
		}
	}()

	for r := range pool.Results() {
		res := r.Value
		if res == nil {
			res = &Result{CameraID: r.Job.CameraID, Status: StatusFailed}
		}
		if res.Err == nil && r.Error != nil {
			res.Err = r.Error
		}
		summary.Results[r.Job.Seq] = res

		b.metrics.RecordCamera(string(res.Status))
		if b.opts.OnResult != nil {
			b.opts.OnResult(res)
		}
	}

	for i, res := range summary.Results {
		if res == nil {
			summary.Results[i] = &Result{CameraID: ids[i], Status: StatusCancelled, Err: ctx.Err()}
			b.metrics.RecordCamera(string(StatusCancelled))
		}
	}

	summary.FinishedAt = time.Now().UTC()
	log.InfoWithFields("batch finished", map[string]interface{}{
		"synced":          summary.Count(StatusSynced),
		"skipped":         summary.Count(StatusSkipped),
		"partial_failure": summary.Count(StatusPartialFailure),
		"failed":          summary.Count(StatusFailed),
		"cancelled":       summary.Count(StatusCancelled),
		"duration":        summary.FinishedAt.Sub(summary.StartedAt),
	})
	return summary, nil
}

func (b *Batch) syncOne(ctx context.Context, job downloader.Job) (*Result, error) {
	b.metrics.CameraStarted()
	defer b.metrics.CameraDone()
	if b.opts.OnStart != nil {
		b.opts.OnStart(job.CameraID)
	}

	res, err := b.syncer.Sync(ctx, job.CameraID, b.opts.Start, b.opts.End, b.opts.SkipExisting)
	if err != nil {
		b.logger.WithError(err).WithField("camera_id", job.CameraID).Warn("camera sync stopped")
	}
	return res, err
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
