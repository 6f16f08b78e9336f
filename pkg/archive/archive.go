// Package archive opens monthly AMOS zip archives and exposes their entries
// one at a time. Two strategies exist: an in-memory reader bounded by a byte
// budget and a fallback that spools to disk and extracts with unzip(1).
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"amosync/pkg/amos"
	errs "amosync/pkg/errors"
)

// Source opens the raw archive download for a camera month
type Source interface {
	OpenArchive(ctx context.Context, cameraID, year, month int) (*amos.ArchiveStream, error)
}

// Fetcher opens one camera month. Errors match errs.ErrArchiveAbsent,
// errs.ErrArchiveCorrupt or errs.ErrResourceExhausted where applicable.
type Fetcher interface {
	Open(ctx context.Context, cameraID, year, month int) (*Handle, error)
}

// Entry is a file inside an archive
type Entry struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns a reader for the entry contents. Read failures match errs.ErrArchiveCorrupt.
func (e Entry) Open() (io.ReadCloser, error) {
	rc, err := e.open()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeArchiveCorrupt, err, "open entry %s", e.Name)
	}
	return &corruptOnError{rc: rc, name: e.Name}, nil
}

// Handle is an opened archive. It must be closed once its entries are consumed.
type Handle struct {
	entries []Entry
	closer  func() error
}

// NewHandle builds a Handle over in-memory entries; used by fetchers outside this package
func NewHandle(contents map[string][]byte, order []string) *Handle {
	entries := make([]Entry, 0, len(order))
	for _, name := range order {
		data := contents[name]
		entries = append(entries, Entry{
			Name: name,
			Size: int64(len(data)),
			open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		})
	}
	return &Handle{entries: entries}
}

// Entries lists the archive's files in archive order
func (h *Handle) Entries() []Entry {
	return h.entries
}

// Close releases memory or scratch files held by the handle
func (h *Handle) Close() error {
	h.entries = nil
	if h.closer == nil {
		return nil
	}
	closer := h.closer
	h.closer = nil
	return closer()
}

type corruptOnError struct {
	rc   io.ReadCloser
	name string
}

func (c *corruptOnError) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, errs.Wrap(errs.ErrorTypeArchiveCorrupt, err, "read entry %s", c.name)
	}
	return n, err
}

func (c *corruptOnError) Close() error {
	return c.rc.Close()
}

// cleanEntryName normalises an entry name and rejects names escaping the camera directory
func cleanEntryName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := path.Clean(name)
	if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("unsafe entry name %q", name)
	}
	return cleaned, nil
}

func absent(cameraID, year, month int, cause error) error {
	return errs.Wrap(errs.ErrorTypeArchiveAbsent, cause, "camera %d %04d.%02d", cameraID, year, month)
}

func corrupt(cameraID, year, month int, cause error) error {
	return errs.Wrap(errs.ErrorTypeArchiveCorrupt, cause, "camera %d %04d.%02d", cameraID, year, month)
}

func isTerminal(err error) bool {
	return errors.Is(err, errs.ErrArchiveAbsent) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
