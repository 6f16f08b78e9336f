// Package catalog builds a metadata database of AMOS cameras.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"amosync/pkg/amos"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Directory lists cameras and resolves their records
type Directory interface {
	ListCameras(ctx context.Context) ([]amos.Camera, error)
	CameraInfo(ctx context.Context, cameraID int) (*amos.CameraRecord, error)
}

// Options tune Build
type Options struct {
	// Sample picks this many distinct cameras at random; zero keeps all
	Sample int
	// Workers bounds concurrent info lookups; values below 1 mean 1
	Workers int
	// Rand drives sampling; nil uses the global source
	Rand *rand.Rand
}

// Catalog is the result of a Build
type Catalog struct {
	Records []*amos.CameraRecord
	// Missing lists cameras the upstream has no record for
	Missing []int
	// Failed maps cameras whose lookup failed otherwise to the error text
	Failed map[int]string
}

// Build resolves records for ids, or for every listed camera when ids is
// empty. Unknown cameras are logged and skipped. Records keep id order.
func Build(ctx context.Context, dir Directory, ids []int, opts Options, log logger.Logger) (*Catalog, error) {
	log = logger.OrDefault(log).WithField("component", "catalog")

	if len(ids) == 0 {
		cameras, err := dir.ListCameras(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cameras: %w", err)
		}
		ids = make([]int, 0, len(cameras))
		for _, c := range cameras {
			ids = append(ids, c.ID)
		}
	}

	if opts.Sample > 0 {
		ids = sample(ids, opts.Sample, opts.Rand)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	records := make([]*amos.CameraRecord, len(ids))
	failures := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := dir.CameraInfo(gctx, id)
			if err != nil {
				// a request timeout is one failed camera; only the build's
				// own context stops the build
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = err
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cat := &Catalog{Failed: map[int]string{}}
	for i, id := range ids {
		switch err := failures[i]; {
		case err == nil:
			cat.Records = append(cat.Records, records[i])
		case errors.Is(err, errs.ErrNotFound):
			log.WithField("camera_id", id).Warn("unable to retrieve camera, skipping")
			cat.Missing = append(cat.Missing, id)
		default:
			log.WithError(err).WithField("camera_id", id).Warn("camera lookup failed, skipping")
			cat.Failed[id] = err.Error()
		}
	}

	log.InfoWithFields("catalog built", map[string]interface{}{
		"requested": len(ids),
		"records":   len(cat.Records),
		"missing":   len(cat.Missing),
		"failed":    len(cat.Failed),
	})
	return cat, nil
}

// sample returns n distinct ids in ascending order, or all of them when n covers the list
func sample(ids []int, n int, rng *rand.Rand) []int {
	if n >= len(ids) {
		return ids
	}

	shuffled := append([]int(nil), ids...)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	picked := shuffled[:n]
	sort.Ints(picked)
	return picked
}

// Save writes the records as a JSON array in the info.json layout
func (c *Catalog) Save(path string) error {
	records := c.Records
	if records == nil {
		records = []*amos.CameraRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}
