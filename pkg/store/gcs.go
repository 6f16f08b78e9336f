package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	appconfig "amosync/pkg/config"
	errs "amosync/pkg/errors"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBackend stores objects in a Google Cloud Storage bucket
type GCSBackend struct {
	bucket string
	handle *storage.BucketHandle
}

// NewGCSBackend uses cfg.CredentialsFile when set, else Application Default Credentials
func NewGCSBackend(ctx context.Context, cfg appconfig.StorageConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to create GCS client")
	}

	return &GCSBackend{bucket: cfg.Bucket, handle: client.Bucket(cfg.Bucket)}, nil
}

func (b *GCSBackend) Location() string {
	return "gs://" + b.bucket
}

func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.handle.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("attrs %s/%s: %w", b.Location(), key, err)
}

// Put streams body into a new object. Cancelling the writer's context on
// failure discards the partial upload instead of finalising it.
func (b *GCSBackend) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}
