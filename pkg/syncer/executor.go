// Package syncer plans and runs incremental camera syncs: it resolves a
// camera's record, intersects the requested range with the camera's
// activity window and merges each monthly archive into a store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amosync/pkg/amos"
	"amosync/pkg/archive"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"amosync/pkg/metrics"
	"amosync/pkg/store"
)

// Directory resolves camera records
type Directory interface {
	CameraInfo(ctx context.Context, cameraID int) (*amos.CameraRecord, error)
}

// Status is the outcome of syncing one camera
type Status string

const (
	StatusSynced         Status = "synced"
	StatusSkipped        Status = "skipped"
	StatusPartialFailure Status = "partial_failure"
	// StatusFailed marks a camera that stopped with an error; see Result.Err
	StatusFailed Status = "failed"
	// StatusCancelled marks a camera the batch never started
	StatusCancelled Status = "cancelled"
)

// Result summarises one camera sync
type Result struct {
	CameraID     int
	Status       Status
	FailedMonths []Month
	MergedMonths int
	AbsentMonths int
	Entries      int
	Window       *Window
	Duration     time.Duration
	Err          error
}

// Executor syncs single cameras. It is safe for concurrent use by
// multiple cameras as long as its collaborators are.
type Executor struct {
	directory Directory
	fetcher   archive.Fetcher
	store     store.Store
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewExecutor creates an Executor writing into st
func NewExecutor(directory Directory, fetcher archive.Fetcher, st store.Store, log logger.Logger) *Executor {
	return &Executor{
		directory: directory,
		fetcher:   fetcher,
		store:     st,
		logger:    logger.OrDefault(log).WithField("component", "syncer"),
	}
}

// SetMetrics attaches a metrics sink
func (e *Executor) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Sync brings one camera up to date for [start, end]; nil bounds defer to
// the camera's activity window. The returned error is non-nil when the
// camera stopped early: an unknown camera, a store failure or cancellation.
// Failed months alone are reported through the result, not the error.
func (e *Executor) Sync(ctx context.Context, cameraID int, start, end *time.Time, skipExisting bool) (*Result, error) {
	began := time.Now()
	res := &Result{CameraID: cameraID}
	log := e.logger.WithField("camera_id", cameraID)

	finish := func(status Status, err error) (*Result, error) {
		res.Status = status
		res.Err = err
		res.Duration = time.Since(began)
		return res, err
	}

	record, err := e.directory.CameraInfo(ctx, cameraID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			log.Warn("camera has no record upstream")
		}
		return finish(StatusFailed, err)
	}

	exists, err := e.store.Exists(ctx, cameraID)
	if err != nil {
		return finish(StatusFailed, errs.Wrap(errs.ErrorTypeStoreWrite, err, "camera %d: check sync state", cameraID))
	}
	if exists && skipExisting {
		log.Debug("camera already synced, skipping")
		return finish(StatusSkipped, nil)
	}

	// the record goes first so an interrupted sync still leaves a resumable camera
	if err := e.store.WriteRecord(ctx, cameraID, record); err != nil {
		return finish(StatusFailed, err)
	}

	window, ok := Plan(start, end, record)
	if !ok {
		log.Info("nothing to sync for requested range")
		return finish(StatusSynced, nil)
	}
	res.Window = &window

	log.InfoWithFields("syncing camera", map[string]interface{}{
		"start": window.Start.String(),
		"end":   window.End.String(),
	})

	for _, m := range window.Months() {
		if err := ctx.Err(); err != nil {
			return finish(StatusFailed, err)
		}

		entries, err := e.syncMonth(ctx, cameraID, m)
		res.Entries += entries

		switch {
		case err == nil:
			res.MergedMonths++
			e.metrics.RecordMonth(metrics.MonthMerged)
			logger.LogMonth(log, cameraID, m.Year, m.Month, metrics.MonthMerged, entries, nil)
		case ctx.Err() != nil:
			// request timeouts also match context.DeadlineExceeded; only the
			// camera's own context ends the sync
			return finish(StatusFailed, ctx.Err())
		case errors.Is(err, errs.ErrArchiveCorrupt):
			res.FailedMonths = append(res.FailedMonths, m)
			e.metrics.RecordMonth(metrics.MonthFailed)
			logger.LogMonth(log, cameraID, m.Year, m.Month, metrics.MonthFailed, entries, err)
		case errors.Is(err, errs.ErrArchiveAbsent):
			res.AbsentMonths++
			e.metrics.RecordMonth(metrics.MonthAbsent)
			log.DebugWithFields("no archive for month", map[string]interface{}{"month": m.String()})
		case errors.Is(err, errs.ErrStoreWrite):
			e.metrics.RecordMonth(metrics.MonthFailed)
			log.WithError(err).ErrorWithFields("store write failed, abandoning camera", map[string]interface{}{
				"month": m.String(),
			})
			return finish(StatusFailed, err)
		default:
			res.FailedMonths = append(res.FailedMonths, m)
			e.metrics.RecordMonth(metrics.MonthFailed)
			logger.LogMonth(log, cameraID, m.Year, m.Month, metrics.MonthFailed, entries, err)
		}
	}

	if len(res.FailedMonths) > 0 {
		return finish(StatusPartialFailure, nil)
	}
	return finish(StatusSynced, nil)
}

// syncMonth streams every entry of one monthly archive into the store and
// returns how many were written
func (e *Executor) syncMonth(ctx context.Context, cameraID int, m Month) (int, error) {
	fetchStart := time.Now()
	h, err := e.fetcher.Open(ctx, cameraID, m.Year, m.Month)
	e.metrics.ObserveFetch(fetchOutcome(err), time.Since(fetchStart))
	if err != nil {
		return 0, err
	}
	defer h.Close()

	written := 0
	for _, entry := range h.Entries() {
		if entry.Name == store.RecordName {
			e.logger.WarnWithFields("archive entry would replace the camera record, skipping", map[string]interface{}{
				"camera_id": cameraID,
				"month":     m.String(),
			})
			continue
		}
		if err := e.writeEntry(ctx, cameraID, entry); err != nil {
			e.metrics.AddEntries(written)
			return written, err
		}
		written++
	}
	e.metrics.AddEntries(written)
	return written, nil
}

func (e *Executor) writeEntry(ctx context.Context, cameraID int, entry archive.Entry) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := e.store.Write(ctx, cameraID, entry.Name, rc); err != nil {
		return fmt.Errorf("entry %s: %w", entry.Name, err)
	}
	return nil
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.MonthMerged
	case errors.Is(err, errs.ErrArchiveAbsent):
		return metrics.MonthAbsent
	default:
		return metrics.MonthFailed
	}
}
