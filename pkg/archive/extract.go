package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"github.com/google/uuid"
)

// Extractor unpacks the archive at archivePath into destDir
type Extractor func(ctx context.Context, archivePath, destDir string) error

// ErrNoExtractor is returned when no unzip tool is available
var ErrNoExtractor = errors.New("unzip executable not found in PATH")

// UnzipExtractor locates unzip(1) and returns an Extractor running it
func UnzipExtractor() (Extractor, error) {
	bin, err := exec.LookPath("unzip")
	if err != nil {
		return nil, ErrNoExtractor
	}

	return func(ctx context.Context, archivePath, destDir string) error {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, "-qq", "-o", archivePath, "-d", destDir)
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return err
			}
			return fmt.Errorf("%w: %s", err, msg)
		}
		return nil
	}, nil
}

// ExtractFetcher spools the archive to a scratch directory and extracts it there.
// It has no memory bound and serves entries straight from disk.
type ExtractFetcher struct {
	source     Source
	scratchDir string
	extract    Extractor
	logger     logger.Logger
}

// NewExtractFetcher creates a fetcher using extract; scratchDir defaults to os.TempDir()
func NewExtractFetcher(source Source, scratchDir string, extract Extractor, log logger.Logger) *ExtractFetcher {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &ExtractFetcher{
		source:     source,
		scratchDir: scratchDir,
		extract:    extract,
		logger:     logger.OrDefault(log),
	}
}

func (f *ExtractFetcher) Open(ctx context.Context, cameraID, year, month int) (h *Handle, err error) {
	if err := os.MkdirAll(f.scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	workDir := filepath.Join(f.scratchDir, fmt.Sprintf("amosync-%d-%04d%02d-%s", cameraID, year, month, uuid.NewString()))
	if err := os.Mkdir(workDir, 0700); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(workDir)
		}
	}()

	archivePath := filepath.Join(workDir, "archive.zip")
	n, err := f.spool(ctx, cameraID, year, month, archivePath)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, absent(cameraID, year, month, errors.New("empty body"))
	}

	outDir := filepath.Join(workDir, "out")
	if err := os.Mkdir(outDir, 0700); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := f.extract(ctx, archivePath, outDir); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, corrupt(cameraID, year, month, err)
	}
	os.Remove(archivePath)

	entries, err := walkEntries(outDir)
	if err != nil {
		return nil, corrupt(cameraID, year, month, err)
	}

	f.logger.DebugWithFields("archive extracted to scratch", map[string]interface{}{
		"camera_id": cameraID,
		"year":      year,
		"month":     month,
		"bytes":     n,
		"entries":   len(entries),
		"work_dir":  workDir,
	})

	return &Handle{
		entries: entries,
		closer: func() error {
			return os.RemoveAll(workDir)
		},
	}, nil
}

func (f *ExtractFetcher) spool(ctx context.Context, cameraID, year, month int, dst string) (int64, error) {
	stream, err := f.source.OpenArchive(ctx, cameraID, year, month)
	if err != nil {
		return 0, err
	}
	defer stream.Body.Close()

	file, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(file, stream.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, err, "spool %s", stream.URL)
	}
	return n, nil
}

// walkEntries lists regular files under root in lexical order, named relative to root
func walkEntries(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name, err := cleanEntryName(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		entries = append(entries, Entry{
			Name: name,
			Size: info.Size(),
			open: func() (io.ReadCloser, error) {
				return os.Open(p)
			},
		})
		return nil
	})
	return entries, err
}
