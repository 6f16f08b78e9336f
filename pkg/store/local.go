package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"amosync/pkg/amos"
	"amosync/pkg/logger"
)

// Local stores cameras as <root>/<camera id>/<name>
type Local struct {
	root   string
	logger logger.Logger
}

// NewLocal creates the root directory if needed
func NewLocal(root string, log logger.Logger) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Local{root: root, logger: logger.OrDefault(log)}, nil
}

// Root returns the output directory
func (l *Local) Root() string {
	return l.root
}

// CameraDir returns the directory holding a camera's files
func (l *Local) CameraDir(cameraID int) string {
	return filepath.Join(l.root, strconv.Itoa(cameraID))
}

func (l *Local) Exists(ctx context.Context, cameraID int) (bool, error) {
	_, err := os.Stat(filepath.Join(l.CameraDir(cameraID), RecordName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Write(ctx context.Context, cameraID int, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return writeFailed(cameraID, name, fmt.Errorf("name escapes camera directory"))
	}
	target := filepath.Join(l.CameraDir(cameraID), rel)

	if err := l.writeAtomic(target, r); err != nil {
		return writeFailed(cameraID, name, err)
	}
	return nil
}

func (l *Local) WriteRecord(ctx context.Context, cameraID int, record *amos.CameraRecord) error {
	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}
	return l.Write(ctx, cameraID, RecordName, bytes.NewReader(data))
}

// writeAtomic writes to a temp file beside target and renames it over target
func (l *Local) writeAtomic(target string, r io.Reader) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
