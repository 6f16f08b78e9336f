// Package store persists synced cameras: one info.json record plus the
// extracted images per camera, on the local filesystem or in object storage.
package store

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"

	"amosync/pkg/amos"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"github.com/goccy/go-json"
)

// RecordName is the name of the camera record inside a camera's directory
const RecordName = "info.json"

// Store is the destination of a sync.
// Writes overwrite existing entries and become visible all at once.
type Store interface {
	// Exists reports whether the camera's record has been written
	Exists(ctx context.Context, cameraID int) (bool, error)
	// Write stores one file under the camera's directory
	Write(ctx context.Context, cameraID int, name string, r io.Reader) error
	// WriteRecord stores the camera record as info.json
	WriteRecord(ctx context.Context, cameraID int, record *amos.CameraRecord) error
}

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Store, error) {
	log = logger.OrDefault(log).WithField("component", "store")

	switch cfg.Backend {
	case config.BackendLocal, "":
		return NewLocal(cfg.Root, log)
	case config.BackendS3:
		backend, err := NewS3Backend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewObjectStore(backend, cfg.Prefix, log), nil
	case config.BackendGCS:
		backend, err := NewGCSBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewObjectStore(backend, cfg.Prefix, log), nil
	default:
		return nil, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}

// EncodeRecord renders a camera record the way it is stored in info.json
func EncodeRecord(record *amos.CameraRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "encode camera %d record", record.ID)
	}
	return append(data, '\n'), nil
}

// ObjectKey joins prefix, camera id and entry name with forward slashes
func ObjectKey(prefix string, cameraID int, name string) string {
	return path.Join(prefix, strconv.Itoa(cameraID), name)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeFailed(cameraID int, name string, err error) error {
	return errs.Wrap(errs.ErrorTypeStoreWrite, err, "camera %d: write %s", cameraID, name)
}
