package store

import (
	"bytes"
	"context"
	"io"

	"amosync/pkg/amos"
	"amosync/pkg/logger"
)

// ObjectBackend is the minimal surface of a bucket
type ObjectBackend interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Put uploads body as a single object; a failed upload leaves no object behind
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	// Location describes the bucket for log lines, e.g. s3://bucket
	Location() string
}

// ObjectStore stores cameras under <prefix>/<camera id>/<name> keys
type ObjectStore struct {
	backend ObjectBackend
	prefix  string
	logger  logger.Logger
}

func NewObjectStore(backend ObjectBackend, prefix string, log logger.Logger) *ObjectStore {
	return &ObjectStore{
		backend: backend,
		prefix:  prefix,
		logger:  logger.OrDefault(log),
	}
}

func (s *ObjectStore) Exists(ctx context.Context, cameraID int) (bool, error) {
	return s.backend.Exists(ctx, ObjectKey(s.prefix, cameraID, RecordName))
}

func (s *ObjectStore) Write(ctx context.Context, cameraID int, name string, r io.Reader) error {
	key := ObjectKey(s.prefix, cameraID, name)
	if err := s.backend.Put(ctx, key, r, contentType(name)); err != nil {
		s.logger.WarnWithFields("object upload failed", map[string]interface{}{
			"location": s.backend.Location(),
			"key":      key,
			"error":    err.Error(),
		})
		return writeFailed(cameraID, name, err)
	}
	return nil
}

func (s *ObjectStore) WriteRecord(ctx context.Context, cameraID int, record *amos.CameraRecord) error {
	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}
	return s.Write(ctx, cameraID, RecordName, bytes.NewReader(data))
}
