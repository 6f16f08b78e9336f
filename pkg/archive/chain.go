package archive

import (
	"context"
	"errors"

	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
)

// Chain tries Primary and switches to Fallback when Primary runs out of memory budget.
// Any fallback failure other than an absent archive is reported as corrupt.
type Chain struct {
	Primary  Fetcher
	Fallback Fetcher
	Logger   logger.Logger
}

func (c *Chain) Open(ctx context.Context, cameraID, year, month int) (*Handle, error) {
	h, err := c.Primary.Open(ctx, cameraID, year, month)
	if err == nil || !errors.Is(err, errs.ErrResourceExhausted) {
		return h, err
	}

	log := logger.OrDefault(c.Logger).WithFields(map[string]interface{}{
		"camera_id": cameraID,
		"year":      year,
		"month":     month,
	})

	if c.Fallback == nil {
		log.WithError(err).Warn("archive over memory budget and no fallback available")
		return nil, corrupt(cameraID, year, month, err)
	}

	log.Info("archive over memory budget, extracting to scratch")
	h, err = c.Fallback.Open(ctx, cameraID, year, month)
	if err != nil && !isTerminal(err) && !errors.Is(err, errs.ErrArchiveCorrupt) {
		return nil, corrupt(cameraID, year, month, err)
	}
	return h, err
}

// NewDefault builds the memory fetcher from the upstream config, backed by
// unzip(1) extraction when the tool is installed.
func NewDefault(source Source, cfg config.UpstreamConfig, log logger.Logger) Fetcher {
	log = logger.OrDefault(log).WithField("component", "archive")
	primary := NewMemoryFetcher(source, int64(cfg.MemoryLimitMB)<<20, log)

	extract, err := UnzipExtractor()
	if err != nil {
		log.WithError(err).Warn("large archives will be reported as corrupt")
		return &Chain{Primary: primary, Logger: log}
	}

	return &Chain{
		Primary:  primary,
		Fallback: NewExtractFetcher(source, cfg.ScratchDir, extract, log),
		Logger:   log,
	}
}
