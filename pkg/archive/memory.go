package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
)

// DefaultMemoryLimit bounds archives read fully into memory
const DefaultMemoryLimit int64 = 512 << 20

// MemoryFetcher reads the whole archive into memory and serves entries from there
type MemoryFetcher struct {
	source Source
	limit  int64
	logger logger.Logger
}

// NewMemoryFetcher creates a fetcher refusing archives larger than limit bytes
func NewMemoryFetcher(source Source, limit int64, log logger.Logger) *MemoryFetcher {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryFetcher{
		source: source,
		limit:  limit,
		logger: logger.OrDefault(log),
	}
}

func (f *MemoryFetcher) Open(ctx context.Context, cameraID, year, month int) (*Handle, error) {
	stream, err := f.source.OpenArchive(ctx, cameraID, year, month)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	if stream.Size > f.limit {
		return nil, errs.Wrap(errs.ErrorTypeResourceExhausted,
			fmt.Errorf("archive is %d bytes, budget %d", stream.Size, f.limit),
			"camera %d %04d.%02d", cameraID, year, month)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(stream.Body, f.limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "download %s", stream.URL)
	}
	if n > f.limit {
		return nil, errs.Wrap(errs.ErrorTypeResourceExhausted,
			fmt.Errorf("archive exceeds budget of %d bytes", f.limit),
			"camera %d %04d.%02d", cameraID, year, month)
	}
	if n == 0 {
		return nil, absent(cameraID, year, month, errors.New("empty body"))
	}

	handle, err := openZip(buf.Bytes())
	if err != nil {
		return nil, corrupt(cameraID, year, month, err)
	}

	f.logger.DebugWithFields("archive opened in memory", map[string]interface{}{
		"camera_id": cameraID,
		"year":      year,
		"month":     month,
		"bytes":     n,
		"entries":   len(handle.entries),
	})
	return handle, nil
}

func openZip(data []byte) (*Handle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntryName(file.Name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Name: name,
			Size: int64(file.UncompressedSize64),
			open: file.Open,
		})
	}

	return &Handle{entries: entries}, nil
}
